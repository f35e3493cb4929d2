package search

import (
	"context"
	"slices"

	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// StructuredStrategy ranks interventions that pass every present filter.
type StructuredStrategy struct{}

// NewStructuredStrategy creates a structured filter strategy.
func NewStructuredStrategy() *StructuredStrategy { return &StructuredStrategy{} }

// Name implements Strategy.
func (StructuredStrategy) Name() string { return StrategyStructured }

// Rank scores each passing intervention by the number of filters it matched,
// keeping catalog order among equals. No filters yields no ranking.
func (StructuredStrategy) Rank(ctx context.Context, q query.Query, snap *catalog.Snapshot) ([]Hit, error) {
	f := q.Filters()
	if f.IsEmpty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context error
	}

	var hits []Hit
	for _, iv := range snap.All() {
		if matched, ok := f.Match(iv); ok {
			hits = append(hits, Hit{ID: iv.ID(), Score: float64(matched)})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return hits, nil
}
