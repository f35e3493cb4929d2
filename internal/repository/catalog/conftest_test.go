package catalog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

func floatPtr(f float64) *float64 { return &f }

func rec(id string, emb ...float32) Record {
	return Record{ID: id, Name: "Intervention " + id, Category: "Road Sign", Embedding: emb}
}

func mustIntervention(t *testing.T, id string, emb ...float32) intervention.Intervention {
	t.Helper()
	iv, err := intervention.New(intervention.Attributes{ID: id, Name: id, Embedding: emb})
	if err != nil {
		t.Fatalf("intervention.New(%s): %v", id, err)
	}
	return iv
}

// errSource fails every load.
type errSource struct{ err error }

func (s errSource) Load(context.Context) ([]Record, error) { return nil, s.err }

// mockBackfiller implements backfiller for tests.
type mockBackfiller struct {
	fn    func(ctx context.Context, records []Record) ([]Record, error)
	calls int
}

func (m *mockBackfiller) Backfill(ctx context.Context, records []Record) ([]Record, error) {
	m.calls++
	return m.fn(ctx, records)
}
