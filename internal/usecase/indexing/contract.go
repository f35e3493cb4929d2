package indexing

import (
	"context"

	"github.com/kailas-cloud/roadsafe/internal/domain"
)

// BatchEmbedder vectorizes document texts in bulk.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
