package catalog

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// Neighbor is a nearest-neighbor hit.
type Neighbor struct {
	Intervention intervention.Intervention
	Similarity   float64
}

// Snapshot is an immutable, versioned view of the catalog.
// Safe for concurrent reads.
type Snapshot struct {
	version uint64
	dims    int
	items   []intervention.Intervention
	norms   []float64
	byID    map[string]int
}

// NewSnapshot builds a snapshot from validated interventions in insertion
// order. Callers must not modify items afterwards.
func NewSnapshot(version uint64, dims int, items []intervention.Intervention) *Snapshot {
	s := &Snapshot{
		version: version,
		dims:    dims,
		items:   items,
		norms:   make([]float64, len(items)),
		byID:    make(map[string]int, len(items)),
	}
	for i, iv := range items {
		s.byID[iv.ID()] = i
		s.norms[i] = norm(iv.Embedding())
	}
	return s
}

// Version returns the monotonically increasing snapshot version.
func (s *Snapshot) Version() uint64 { return s.version }

// Dimensions returns the embedding length shared by every record.
func (s *Snapshot) Dimensions() int { return s.dims }

// Len returns the number of interventions.
func (s *Snapshot) Len() int { return len(s.items) }

// All returns every intervention in insertion order.
func (s *Snapshot) All() []intervention.Intervention { return slices.Clone(s.items) }

// Lookup returns the intervention with the given id.
func (s *Snapshot) Lookup(id string) (intervention.Intervention, error) {
	i, ok := s.byID[id]
	if !ok {
		return intervention.Intervention{}, fmt.Errorf("intervention %q: %w", id, domain.ErrNotFound)
	}
	return s.items[i], nil
}

// Filter returns interventions satisfying pred, in insertion order.
func (s *Snapshot) Filter(pred func(intervention.Intervention) bool) []intervention.Intervention {
	var out []intervention.Intervention
	for _, iv := range s.items {
		if pred(iv) {
			out = append(out, iv)
		}
	}
	return out
}

// Nearest returns the k most cosine-similar interventions to vec by exact
// scan. Ties are broken by lower id.
func (s *Snapshot) Nearest(vec []float32, k int) ([]Neighbor, error) {
	if k <= 0 || len(s.items) == 0 {
		return nil, nil
	}
	if len(vec) != s.dims {
		return nil, fmt.Errorf("query has %d dims, catalog has %d: %w", len(vec), s.dims, domain.ErrVectorDimMismatch)
	}
	if !finite(vec) {
		return nil, fmt.Errorf("query vector: %w", domain.ErrInvalidVector)
	}

	qNorm := norm(vec)
	hits := make([]Neighbor, len(s.items))
	for i, iv := range s.items {
		hits[i] = Neighbor{Intervention: iv, Similarity: cosine(vec, iv.Embedding(), qNorm, s.norms[i])}
	}
	slices.SortFunc(hits, func(a, b Neighbor) int {
		if a.Similarity != b.Similarity {
			if a.Similarity > b.Similarity {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Intervention.ID(), b.Intervention.ID())
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Categories returns the distinct category labels, sorted.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, iv := range s.items {
		c := iv.Category()
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// finite reports whether every component is a real number.
func finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine uses precomputed norms; a zero vector has similarity 0.
func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
