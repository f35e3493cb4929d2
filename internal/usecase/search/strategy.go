package search

import (
	"context"

	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// Strategy names.
const (
	StrategyVector     = "vector"
	StrategyStructured = "structured"
)

// Hit is one entry of a strategy ranking. Rank is the 1-based position.
type Hit struct {
	ID    string
	Score float64
}

// Strategy produces an ordered ranking of intervention ids for a query.
// An empty ranking means the strategy has nothing to say about the query.
type Strategy interface {
	Name() string
	Rank(ctx context.Context, q query.Query, snap *catalog.Snapshot) ([]Hit, error)
}
