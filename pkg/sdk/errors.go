package roadsafe

import "github.com/kailas-cloud/roadsafe/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound             = domain.ErrNotFound
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrCatalogLoad          = domain.ErrCatalogLoad
)
