package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CatalogStore holds the current catalog snapshot.
type CatalogStore interface {
	Snapshot() *catalog.Snapshot
	Swap(next *catalog.Snapshot) *catalog.Snapshot
}

// CatalogLoader builds validated snapshots from a source.
type CatalogLoader interface {
	Load(ctx context.Context, src catalog.Source) (*catalog.Snapshot, error)
}

// ResultCache stores completed result sets by fingerprint.
type ResultCache interface {
	Get(fingerprint string) (result.Set, bool)
	Set(fingerprint string, set result.Set, ttl time.Duration)
	Invalidate() int
}
