package roadsafe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batches atomic.Int32
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	m.batches.Add(1)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// keywordEmbedder maps text onto a 2-d plane: "sign" pulls x, "line" pulls y.
func keywordEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		switch {
		case strings.Contains(text, "sign"):
			return EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 2}, nil
		case strings.Contains(text, "line"):
			return EmbeddingResult{Embedding: []float32{0, 1}, TotalTokens: 2}, nil
		default:
			return EmbeddingResult{Embedding: []float32{0.7, 0.7}, TotalTokens: 2}, nil
		}
	}}
}

func failingEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
		return EmbeddingResult{}, errors.New("provider down")
	}}
}

func f64(v float64) *float64 { return &v }

func sampleRecords() []Record {
	return []Record{
		{
			ID: "RS_001", Name: "STOP Sign", Category: "Road Sign", Problem: "Damaged",
			SpeedMin: f64(0), SpeedMax: f64(50), CostEstimate: 1000, ImplementationTime: 2,
			Embedding: []float32{1, 0},
		},
		{
			ID: "RM_001", Name: "Edge Line", Category: "Road Marking", Problem: "Faded",
			CostEstimate: 500, ImplementationTime: 5, Embedding: []float32{0, 1},
		},
		{
			ID: "TC_001", Name: "Speed Hump", Category: "Traffic Calming Measures", Problem: "Missing",
			SpeedMin: f64(20), SpeedMax: f64(40), CostEstimate: 2000, ImplementationTime: 1,
			Embedding: []float32{0.7, 0.7},
		},
	}
}

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), append([]Option{WithRecords(sampleRecords()...)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoCatalog(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no catalog configured")
	}
}

func TestNew_EmbedMissingWithoutEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithRecords(sampleRecords()...), WithEmbedMissing(2))
	if err == nil {
		t.Fatal("expected error for backfill without embedder")
	}
}

func TestNew_InvalidCatalog(t *testing.T) {
	records := sampleRecords()
	records[1].Embedding = []float32{1, 2, 3}

	_, err := New(context.Background(), WithRecords(records...))
	if !errors.Is(err, ErrCatalogLoad) {
		t.Fatalf("expected ErrCatalogLoad, got %v", err)
	}

	c, err := New(context.Background(), WithRecords(records...), WithMaxRejectRatio(0.5))
	if err != nil {
		t.Fatalf("tolerated rejection: %v", err)
	}
	defer c.Close()
	if _, err := c.Intervention("RM_001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rejected record must not be served, got %v", err)
	}
}

func TestSearchBuilder_Hybrid(t *testing.T) {
	c := newClient(t, WithEmbedder(keywordEmbedder()))

	res, err := c.NewSearch().Text("damaged stop sign").Category("road sign").Limit(3).Do(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) == 0 || res.Hits[0].ID != "RS_001" {
		t.Fatalf("expected RS_001 first, got %+v", res.Hits)
	}
	if res.Hits[0].Name != "STOP Sign" || res.Hits[0].Category != "Road Sign" {
		t.Errorf("hit not enriched: %+v", res.Hits[0])
	}
	if len(res.Hits[0].Strategies) != 2 {
		t.Errorf("expected both strategies on top hit, got %v", res.Hits[0].Strategies)
	}
	if !strings.Contains(res.Hits[0].Explanation, "category Road Sign") {
		t.Errorf("explanation = %q", res.Hits[0].Explanation)
	}
	if res.Mode != "hybrid" || res.Took <= 0 {
		t.Errorf("mode = %q, took = %v", res.Mode, res.Took)
	}
	if res.Degraded || res.FromCache || res.CatalogVersion != 1 {
		t.Errorf("unexpected envelope %+v", res)
	}

	again, err := c.NewSearch().Text("  Damaged STOP sign ").Category("Road Sign").Limit(3).Do(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !again.FromCache || again.Fingerprint != res.Fingerprint {
		t.Errorf("normalized repeat should hit the cache, got %+v", again)
	}
}

func TestSearch_StructuredOnlyWithoutEmbedder(t *testing.T) {
	c := newClient(t)

	res, err := c.NewSearch().Speed(25, 30).Tags("missing").Do(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "TC_001" {
		t.Fatalf("expected TC_001, got %+v", res.Hits)
	}
	if len(res.Strategies) != 1 || res.Strategies[0] != "structured" {
		t.Errorf("strategies = %v", res.Strategies)
	}
}

func TestSearch_Strategy(t *testing.T) {
	ctx := context.Background()

	t.Run("structured skips the embedder", func(t *testing.T) {
		var calls atomic.Int32
		emb := &mockEmbedder{fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			calls.Add(1)
			return EmbeddingResult{Embedding: []float32{1, 0}}, nil
		}}
		c := newClient(t, WithEmbedder(emb))

		res, err := c.NewSearch().Text("stop sign").Category("Road Sign").Strategy("structured").Do(ctx)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if res.Mode != "structured" || len(res.Strategies) != 1 || res.Strategies[0] != "structured" {
			t.Errorf("mode = %q, strategies = %v", res.Mode, res.Strategies)
		}
		if calls.Load() != 0 {
			t.Errorf("embedder called %d times", calls.Load())
		}
	})

	t.Run("rag runs the vector strategy alone", func(t *testing.T) {
		c := newClient(t, WithEmbedder(keywordEmbedder()))

		res, err := c.NewSearch().Text("edge line").Category("Road Sign").Strategy("rag").Do(ctx)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if res.Mode != "vector" || len(res.Hits) == 0 || res.Hits[0].ID != "RM_001" {
			t.Errorf("filters must not apply in vector mode, got %+v", res)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		c := newClient(t)
		for _, q := range []Query{
			{Text: "stop sign", Strategy: "keyword"},
			{Text: "stop sign", Strategy: "structured"},
			{Text: "stop sign", Strategy: "vector"}, // no embedder configured
		} {
			if _, err := c.Search(ctx, q); !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("%+v: expected ErrInvalidQuery, got %v", q, err)
			}
		}
	})
}

func TestStats(t *testing.T) {
	c := newClient(t)

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Interventions != 3 || stats.CatalogVersion != 1 {
		t.Errorf("unexpected header %+v", stats)
	}
	if len(stats.Categories) != 3 || stats.SpeedSpecific != 2 {
		t.Errorf("categories = %v, speed specific = %d", stats.Categories, stats.SpeedSpecific)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	c := newClient(t)

	if _, err := c.Search(context.Background(), Query{}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("empty query: expected ErrInvalidQuery, got %v", err)
	}
	_, err := c.NewSearch().Speed(80, 20).Do(context.Background())
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("inverted speed: expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch_EmbedderDown(t *testing.T) {
	c := newClient(t, WithEmbedder(failingEmbedder()))

	_, err := c.NewSearch().Text("faded edge line").Do(context.Background())
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}

	res, err := c.NewSearch().Text("faded edge line").Category("Road Marking").Do(context.Background())
	if err != nil {
		t.Fatalf("filters should carry the search: %v", err)
	}
	if !res.Degraded || len(res.Hits) != 1 || res.Hits[0].ID != "RM_001" {
		t.Errorf("expected degraded RM_001, got %+v", res)
	}
}

func TestPlanBudget_FromSearchHits(t *testing.T) {
	c := newClient(t, WithEmbedder(keywordEmbedder()))
	ctx := context.Background()

	res, err := c.NewSearch().Text("road safety").Limit(3).Do(ctx)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	refs := res.Refs()
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}

	plan, err := c.PlanBudget(ctx, refs, 1600, true)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.Feasible || plan.TotalCost > 1600 {
		t.Errorf("unexpected plan %+v", plan)
	}
	if len(plan.Items)+len(plan.Excluded) != 3 {
		t.Errorf("every candidate must be selected or excluded")
	}

	if _, err := c.PlanBudget(ctx, refs, 0, true); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("zero budget: expected ErrInvalidQuery, got %v", err)
	}
	if _, err := c.PlanBudget(ctx, []CandidateRef{{ID: "NOPE", Confidence: 1}}, 100, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	cmp, err := c.Compare(ctx, []CandidateRef{{ID: "RS_001", Confidence: 0.9}, {ID: "RM_001", Confidence: 0.4}})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if cmp.Winner != "RS_001" {
		t.Errorf("winner = %s, want RS_001", cmp.Winner)
	}
	if len(cmp.TradeOffs) != 1 || cmp.TradeOffs[0].Cheaper != "RM_001" {
		t.Errorf("trade-offs = %+v", cmp.TradeOffs)
	}

	if _, err := c.Compare(ctx, []CandidateRef{{ID: "RS_001", Confidence: 1}}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("single candidate: expected ErrInvalidQuery, got %v", err)
	}
}

func TestReloadAndHealth(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	h := c.Health(ctx)
	if h.Status != "ok" || h.Interventions != 3 || h.CatalogVersion != 1 {
		t.Errorf("unexpected health %+v", h)
	}

	v, err := c.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if h := c.Health(ctx); h.CatalogVersion != 2 {
		t.Errorf("health version = %d after reload", h.CatalogVersion)
	}
}

func TestEmbedMissing(t *testing.T) {
	records := sampleRecords()
	for i := range records {
		records[i].Embedding = nil
	}
	emb := &mockBatchEmbedder{mockEmbedder: *keywordEmbedder()}

	c, err := New(context.Background(), WithRecords(records...), WithEmbedder(emb), WithEmbedMissing(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if emb.batches.Load() == 0 {
		t.Error("expected native batch embedding")
	}
	iv, err := c.Intervention("RS_001")
	if err != nil {
		t.Fatalf("Intervention: %v", err)
	}
	if len(iv.Embedding()) != 2 {
		t.Errorf("expected backfilled 2-d embedding, got %v", iv.Embedding())
	}
}

func TestWithPrometheus_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c1 := newClient(t, WithPrometheus(reg), WithLogger(slog.New(slog.DiscardHandler)))
	c2 := newClient(t, WithPrometheus(reg))

	ctx := context.Background()
	_, _ = c1.NewSearch().Category("Road Sign").Do(ctx)
	_, _ = c2.NewSearch().Category("Road Sign").Do(ctx)
	_, _ = c2.Search(ctx, Query{})

	if got := testutil.ToFloat64(c1.obs.metrics.operations.WithLabelValues("search", "ok")); got != 2 {
		t.Errorf("search ok = %v, want 2 across clients", got)
	}
	if got := testutil.ToFloat64(c1.obs.metrics.operations.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("search error = %v, want 1", got)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	adapter := &embedderAdapter{inner: keywordEmbedder()}
	res, err := adapter.Embed(context.Background(), "sign")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 || res.TotalTokens != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	batch, err := adapter.BatchEmbed(context.Background(), []string{"sign", "line"})
	if err != nil {
		t.Fatalf("fallback batch: %v", err)
	}
	if len(batch.Embeddings) != 2 || batch.TotalTokens != 4 {
		t.Errorf("unexpected batch %+v", batch)
	}

	failing := &embedderAdapter{inner: failingEmbedder()}
	if _, err := failing.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from adapter")
	}
	if err := failing.HealthCheck(context.Background()); err != nil {
		t.Errorf("embedder without health check is healthy, got %v", err)
	}
}
