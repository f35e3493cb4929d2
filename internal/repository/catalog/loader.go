package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// maxReportedRejections bounds how many rejections a load error carries.
const maxReportedRejections = 10

// backfiller fills in missing embeddings before validation.
type backfiller interface {
	Backfill(ctx context.Context, records []Record) ([]Record, error)
}

// LoaderConfig controls record validation.
type LoaderConfig struct {
	// Dimensions is the expected embedding length; 0 takes the first valid record's.
	Dimensions int
	// MaxRejectRatio is the tolerated rejected/total ratio; 0 aborts on any rejection.
	MaxRejectRatio float64
}

// Loader validates source records into versioned snapshots.
type Loader struct {
	cfg      LoaderConfig
	backfill backfiller
	logger   *zap.Logger
	version  atomic.Uint64
}

// NewLoader creates a loader. bf may be nil.
func NewLoader(cfg LoaderConfig, bf backfiller, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, backfill: bf, logger: logger}
}

// Load reads src, rejects invalid records and returns a new snapshot.
// Fails with ErrCatalogLoad when the source fails, the catalog is empty or
// the rejection ratio exceeds the configured maximum.
func (l *Loader) Load(ctx context.Context, src Source) (*Snapshot, error) {
	records, err := src.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("load source: %w: %w", domain.ErrCatalogLoad, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog has no records: %w", domain.ErrCatalogLoad)
	}

	if l.backfill != nil {
		filled, err := l.backfill.Backfill(ctx, records)
		if err != nil {
			l.logger.Warn("embedding backfill failed", zap.Error(err))
		} else {
			records = filled
		}
	}

	items, dims, rejected := l.validate(records)

	ratio := float64(len(rejected)) / float64(len(records))
	if len(items) == 0 || ratio > l.cfg.MaxRejectRatio {
		reported := rejected
		if len(reported) > maxReportedRejections {
			reported = reported[:maxReportedRejections]
		}
		errs := make([]error, len(reported))
		for i, r := range reported {
			errs[i] = r
		}
		return nil, fmt.Errorf("%d of %d records rejected (max ratio %.2f): %w",
			len(rejected), len(records), l.cfg.MaxRejectRatio, errors.Join(errs...))
	}

	snap := NewSnapshot(l.version.Add(1), dims, items)
	l.logger.Info("catalog loaded",
		zap.Uint64("version", snap.Version()),
		zap.Int("records", len(records)),
		zap.Int("accepted", len(items)),
		zap.Int("rejected", len(rejected)),
		zap.Int("dimensions", dims),
	)
	return snap, nil
}

func (l *Loader) validate(records []Record) ([]intervention.Intervention, int, []*domain.RejectedRecordError) {
	dims := l.cfg.Dimensions
	seen := make(map[string]struct{}, len(records))
	items := make([]intervention.Intervention, 0, len(records))
	var rejected []*domain.RejectedRecordError

	reject := func(idx int, id, reason string) {
		rej := &domain.RejectedRecordError{ID: id, Index: idx, Reason: reason}
		rejected = append(rejected, rej)
		l.logger.Warn("catalog record rejected",
			zap.Int("index", idx),
			zap.String("id", id),
			zap.String("reason", reason),
		)
	}

	for idx, rec := range records {
		iv, err := intervention.New(rec.toAttributes())
		if err != nil {
			reject(idx, rec.ID, err.Error())
			continue
		}
		if _, dup := seen[iv.ID()]; dup {
			reject(idx, iv.ID(), "duplicate id")
			continue
		}
		emb := iv.Embedding()
		if len(emb) == 0 {
			reject(idx, iv.ID(), "empty embedding")
			continue
		}
		if dims == 0 {
			dims = len(emb)
		}
		if len(emb) != dims {
			reject(idx, iv.ID(), fmt.Sprintf("embedding has %d dims, expected %d", len(emb), dims))
			continue
		}
		if !finite(emb) {
			reject(idx, iv.ID(), "non-finite embedding")
			continue
		}
		seen[iv.ID()] = struct{}{}
		items = append(items, iv)
	}
	return items, dims, rejected
}
