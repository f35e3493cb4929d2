package catalog

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

func TestSnapshot_Lookup(t *testing.T) {
	snap := NewSnapshot(1, 2, []intervention.Intervention{
		mustIntervention(t, "A", 1, 0),
		mustIntervention(t, "B", 0, 1),
	})

	iv, err := snap.Lookup("B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.ID() != "B" {
		t.Errorf("Lookup(B).ID() = %q", iv.ID())
	}
	if _, err := snap.Lookup("Z"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshot_FilterKeepsInsertionOrder(t *testing.T) {
	snap := NewSnapshot(1, 1, []intervention.Intervention{
		mustIntervention(t, "C", 1),
		mustIntervention(t, "A", 1),
		mustIntervention(t, "B", 1),
	})
	got := snap.Filter(func(iv intervention.Intervention) bool { return iv.ID() != "A" })
	if len(got) != 2 || got[0].ID() != "C" || got[1].ID() != "B" {
		t.Errorf("Filter() order = %v", ids(got))
	}
	if none := snap.Filter(func(intervention.Intervention) bool { return false }); len(none) != 0 {
		t.Errorf("expected empty filter result, got %d", len(none))
	}
}

func TestSnapshot_Nearest(t *testing.T) {
	snap := NewSnapshot(1, 2, []intervention.Intervention{
		mustIntervention(t, "far", -1, 0),
		mustIntervention(t, "B", 1, 1),
		mustIntervention(t, "A", 1, 1),
		mustIntervention(t, "exact", 1, 0),
		mustIntervention(t, "zero", 0, 0),
	})

	hits, err := snap.Nearest([]float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 4 {
		t.Fatalf("expected 4 hits, got %d", len(hits))
	}
	want := []string{"exact", "A", "B", "zero"}
	for i, h := range hits {
		if h.Intervention.ID() != want[i] {
			t.Errorf("hit %d = %q, want %q", i, h.Intervention.ID(), want[i])
		}
	}
	if math.Abs(hits[0].Similarity-1) > 1e-9 {
		t.Errorf("exact similarity = %v", hits[0].Similarity)
	}
	if math.Abs(hits[1].Similarity-hits[2].Similarity) > 1e-12 {
		t.Error("A and B are identical and must tie")
	}
	if hits[3].Similarity != 0 {
		t.Errorf("zero vector similarity = %v", hits[3].Similarity)
	}
}

func TestSnapshot_NearestEdgeCases(t *testing.T) {
	snap := NewSnapshot(1, 2, []intervention.Intervention{mustIntervention(t, "A", 1, 0)})

	if hits, err := snap.Nearest([]float32{1, 0}, 0); err != nil || hits != nil {
		t.Errorf("k=0 should yield nothing, got %v, %v", hits, err)
	}
	if hits, _ := snap.Nearest([]float32{1, 0}, 10); len(hits) != 1 {
		t.Errorf("k larger than catalog should return all, got %d", len(hits))
	}
	if _, err := snap.Nearest([]float32{1, 0, 0}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	for _, bad := range [][]float32{{float32(math.NaN()), 0}, {float32(math.Inf(1)), 1}} {
		if _, err := snap.Nearest(bad, 1); !errors.Is(err, domain.ErrInvalidVector) {
			t.Errorf("Nearest(%v): expected ErrInvalidVector, got %v", bad, err)
		}
	}
}

func TestSnapshot_Categories(t *testing.T) {
	mk := func(id, cat string) intervention.Intervention {
		iv, _ := intervention.New(intervention.Attributes{ID: id, Name: id, Category: cat, Embedding: []float32{1}})
		return iv
	}
	snap := NewSnapshot(3, 1, []intervention.Intervention{
		mk("1", "Road Sign"), mk("2", "Road Marking"), mk("3", "Road Sign"), mk("4", ""),
	})
	cats := snap.Categories()
	if len(cats) != 2 || cats[0] != "Road Marking" || cats[1] != "Road Sign" {
		t.Errorf("Categories() = %v", cats)
	}
	if snap.Len() != 4 || snap.Version() != 3 || snap.Dimensions() != 1 {
		t.Errorf("Len/Version/Dimensions = %d/%d/%d", snap.Len(), snap.Version(), snap.Dimensions())
	}
}

func TestStore_SwapIsAtomic(t *testing.T) {
	first := NewSnapshot(1, 1, []intervention.Intervention{mustIntervention(t, "A", 1)})
	second := NewSnapshot(2, 1, []intervention.Intervention{mustIntervention(t, "B", 1)})
	store := NewStore(first)

	held := store.Snapshot()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := store.Snapshot()
			if snap.Len() != 1 {
				t.Errorf("reader saw partial snapshot of %d", snap.Len())
			}
		}()
	}
	if old := store.Swap(second); old != first {
		t.Error("Swap must return the replaced snapshot")
	}
	wg.Wait()

	if _, err := held.Lookup("A"); err != nil {
		t.Error("held snapshot must stay usable after swap")
	}
	if store.Version() != 2 {
		t.Errorf("Version() = %d, want 2", store.Version())
	}
	if (&Store{}).Version() != 0 {
		t.Error("empty store version should be 0")
	}
}

func ids(items []intervention.Intervention) []string {
	out := make([]string, len(items))
	for i, iv := range items {
		out[i] = iv.ID()
	}
	return out
}
