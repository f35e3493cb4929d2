package analytics

import "github.com/kailas-cloud/roadsafe/internal/repository/catalog"

// CatalogReader exposes the current catalog snapshot.
type CatalogReader interface {
	Snapshot() *catalog.Snapshot
}
