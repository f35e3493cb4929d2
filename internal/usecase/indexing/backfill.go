package indexing

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// Defaults for Config.
const (
	DefaultChunkSize = 32
)

// Config tunes the backfill worker pool.
type Config struct {
	// Workers is the pool size; <= 0 uses half the CPUs (at least 1).
	Workers int
	// ChunkSize is the number of texts per BatchEmbed call.
	ChunkSize int
}

// Backfiller embeds catalog records that arrive without an embedding.
type Backfiller struct {
	embed     BatchEmbedder
	pool      *ants.Pool
	chunkSize int
	logger    *zap.Logger
}

// New creates a backfiller with its own worker pool. Call Release when done.
func New(embed BatchEmbedder, cfg Config, logger *zap.Logger) (*Backfiller, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU()/2, 1)
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Backfiller{
		embed:     embed,
		pool:      pool,
		chunkSize: chunk,
		logger:    logger,
	}, nil
}

// Release frees the worker pool.
func (b *Backfiller) Release() {
	b.pool.Release()
}

// Backfill returns a copy of records where every record lacking an embedding
// got one from its search text. Chunks that fail to embed are logged and
// their records are left as they were, so the loader rejects them.
// The input slice is never modified.
func (b *Backfiller) Backfill(ctx context.Context, records []catalog.Record) ([]catalog.Record, error) {
	out := make([]catalog.Record, len(records))
	copy(out, records)

	var pending []int
	for i, r := range out {
		if len(r.Embedding) == 0 && r.SearchText() != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for start := 0; start < len(pending); start += b.chunkSize {
		idx := pending[start:min(start+b.chunkSize, len(pending))]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := b.embedChunk(ctx, out, idx); err != nil {
				mu.Lock()
				failed += len(idx)
				mu.Unlock()
				b.logger.Warn("backfill chunk failed",
					zap.String("first_id", out[idx[0]].ID),
					zap.Int("records", len(idx)),
					zap.Error(err),
				)
			}
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit backfill chunk: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}

	b.logger.Info("embedding backfill completed",
		zap.Int("pending", len(pending)),
		zap.Int("embedded", len(pending)-failed),
		zap.Int("failed", failed),
	)
	return out, nil
}

// embedChunk writes embeddings into out at idx. Each chunk owns distinct indexes.
func (b *Backfiller) embedChunk(ctx context.Context, out []catalog.Record, idx []int) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error
	}

	texts := make([]string, len(idx))
	for i, j := range idx {
		texts[i] = out[j].SearchText()
	}

	res, err := b.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("batch embed: %w", err)
	}
	if len(res.Embeddings) != len(idx) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(res.Embeddings), len(idx))
	}

	for i, j := range idx {
		out[j].Embedding = res.Embeddings[i]
	}
	return nil
}
