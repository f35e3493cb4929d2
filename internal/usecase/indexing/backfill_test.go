package indexing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// mockEmbedder returns a one-dimensional vector per text; texts containing
// failOn make the whole call fail.
type mockEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return domain.BatchEmbeddingResult{}, domain.ErrEmbeddingUnavailable
		}
		out[i] = []float32{float32(len(t))}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func newBackfiller(t *testing.T, emb BatchEmbedder, chunk int) *Backfiller {
	t.Helper()
	b, err := New(emb, Config{Workers: 2, ChunkSize: chunk}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(b.Release)
	return b
}

func TestBackfill_FillsMissingOnly(t *testing.T) {
	emb := &mockEmbedder{}
	b := newBackfiller(t, emb, 2)

	records := []catalog.Record{
		{ID: "a", Name: "Speed hump"},
		{ID: "b", Name: "Stop sign", Embedding: []float32{9}},
		{ID: "c", Name: "Zebra crossing"},
		{ID: "d", Name: "Rumble strip"},
	}

	out, err := b.Backfill(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range out {
		if len(r.Embedding) == 0 {
			t.Errorf("record %s not embedded", r.ID)
		}
	}
	if out[1].Embedding[0] != 9 {
		t.Error("existing embedding must be kept")
	}
	if len(records[0].Embedding) != 0 {
		t.Error("input must not be modified")
	}
	if emb.calls != 2 {
		t.Errorf("expected 2 chunked calls for 3 pending records, got %d", emb.calls)
	}
}

func TestBackfill_FailedChunkLeavesRecordsEmpty(t *testing.T) {
	emb := &mockEmbedder{failOn: "Broken"}
	b := newBackfiller(t, emb, 1)

	out, err := b.Backfill(context.Background(), []catalog.Record{
		{ID: "a", Name: "Speed hump"},
		{ID: "b", Name: "Broken signal"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0].Embedding) == 0 {
		t.Error("healthy chunk should be embedded")
	}
	if len(out[1].Embedding) != 0 {
		t.Error("failed chunk must stay unembedded")
	}
}

func TestBackfill_NothingPending(t *testing.T) {
	emb := &mockEmbedder{}
	b := newBackfiller(t, emb, 4)

	out, err := b.Backfill(context.Background(), []catalog.Record{{ID: "a", Embedding: []float32{1}}})
	if err != nil || len(out) != 1 {
		t.Fatalf("unexpected result %v, %v", out, err)
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called")
	}
}

func TestBackfill_CancelledContext(t *testing.T) {
	b := newBackfiller(t, &mockEmbedder{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Backfill(ctx, []catalog.Record{{ID: "a", Name: "Speed hump"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackfill_WithLoader(t *testing.T) {
	b := newBackfiller(t, &mockEmbedder{}, 8)
	loader := catalog.NewLoader(catalog.LoaderConfig{}, b, zap.NewNop())

	snap, err := loader.Load(context.Background(), catalog.StaticSource{
		{ID: "a", Name: "Speed hump"},
		{ID: "b", Name: "Stop sign"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Len() != 2 || snap.Dimensions() != 1 {
		t.Errorf("unexpected snapshot len=%d dims=%d", snap.Len(), snap.Dimensions())
	}
}
