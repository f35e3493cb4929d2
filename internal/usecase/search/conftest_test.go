package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// --- Mocks ---

type mockEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int32
	// gate, when set, blocks Embed until closed.
	gate chan struct{}
	// texts receives the text of every call when set.
	mu    sync.Mutex
	texts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 1}, nil
}

type mockStrategy struct {
	name  string
	hits  []Hit
	err   error
	calls atomic.Int32
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Rank(_ context.Context, _ query.Query, _ *catalog.Snapshot) ([]Hit, error) {
	m.calls.Add(1)
	return m.hits, m.err
}

type mockLoader struct {
	snap *catalog.Snapshot
	err  error
}

func (m *mockLoader) Load(_ context.Context, _ catalog.Source) (*catalog.Snapshot, error) {
	return m.snap, m.err
}

// --- Fixtures ---

func f64(v float64) *float64 { return &v }

type ivSpec struct {
	id       string
	category string
	tags     []string
	speed    intervention.SpeedRange
	emb      []float32
}

func newSnapshot(t *testing.T, version uint64, specs ...ivSpec) *catalog.Snapshot {
	t.Helper()
	items := make([]intervention.Intervention, 0, len(specs))
	for _, s := range specs {
		iv, err := intervention.New(intervention.Attributes{
			ID: s.id, Name: "Intervention " + s.id, Category: s.category,
			ProblemTags: s.tags, SpeedRange: s.speed, Embedding: s.emb,
			CostEstimate: 1000, ImplementationTime: 1,
		})
		if err != nil {
			t.Fatalf("intervention.New(%s): %v", s.id, err)
		}
		items = append(items, iv)
	}
	return catalog.NewSnapshot(version, 2, items)
}

// roadCatalog has four interventions on a 2-d embedding plane.
func roadCatalog(t *testing.T) *catalog.Snapshot {
	t.Helper()
	return newSnapshot(t, 1,
		ivSpec{id: "A", category: "Road Sign", tags: []string{"damaged"},
			speed: intervention.SpeedRange{Min: f64(0), Max: f64(50)}, emb: []float32{0.9, 0.1}},
		ivSpec{id: "B", category: "Road Marking", tags: []string{"faded"},
			speed: intervention.SpeedRange{Min: f64(30), Max: f64(80)}, emb: []float32{1, 0}},
		ivSpec{id: "C", category: "Road Marking", tags: []string{"faded"},
			emb: []float32{0, 1}},
		ivSpec{id: "D", category: "Road Sign", tags: []string{"missing"},
			speed: intervention.SpeedRange{Min: f64(60)}, emb: []float32{-1, 0}},
	)
}

func mustQuery(t *testing.T, text, category string, tags []string, maxResults int) query.Query {
	t.Helper()
	s := &Service{}
	q, err := s.NewQuery(text, category, nil, nil, tags, maxResults)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
