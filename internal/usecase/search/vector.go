package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// DefaultCandidatePool is the minimum number of neighbors fetched before fusion.
const DefaultCandidatePool = 10

// VectorStrategy ranks by cosine similarity between the query embedding and
// catalog embeddings.
type VectorStrategy struct {
	embed Embedder
	pool  int
}

// NewVectorStrategy creates a vector strategy. pool <= 0 uses DefaultCandidatePool.
func NewVectorStrategy(embed Embedder, pool int) *VectorStrategy {
	if pool <= 0 {
		pool = DefaultCandidatePool
	}
	return &VectorStrategy{embed: embed, pool: pool}
}

// Name implements Strategy.
func (v *VectorStrategy) Name() string { return StrategyVector }

// Rank embeds the query text and returns the top max(2*max_results, pool)
// neighbors. Filter-only queries yield no ranking and skip the embedder.
func (v *VectorStrategy) Rank(ctx context.Context, q query.Query, snap *catalog.Snapshot) ([]Hit, error) {
	if q.Text() == "" {
		return nil, nil
	}

	emb, err := v.embed.Embed(ctx, q.Text())
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		return nil, fmt.Errorf("vectorize query: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	neighbors, err := snap.Nearest(emb.Embedding, max(q.MaxResults()*2, v.pool))
	if errors.Is(err, domain.ErrInvalidVector) {
		return nil, fmt.Errorf("nearest: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}

	hits := make([]Hit, len(neighbors))
	for i, n := range neighbors {
		hits[i] = Hit{ID: n.Intervention.ID(), Score: n.Similarity}
	}
	return hits, nil
}
