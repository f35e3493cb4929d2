package health

import (
	"context"

	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// CatalogReader exposes the current catalog snapshot.
type CatalogReader interface {
	Snapshot() *catalog.Snapshot
}

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
