package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/filter"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/logger"
	"github.com/kailas-cloud/roadsafe/internal/metrics"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// DefaultDegradedTTL is the cache lifetime of results computed with a failed strategy.
const DefaultDegradedTTL = time.Minute

// Search outcomes reported to metrics.
const (
	outcomeHit      = "hit"
	outcomeMiss     = "miss"
	outcomeDegraded = "degraded"
	outcomeError    = "error"
)

// Config tunes the orchestrator.
type Config struct {
	RRFK        int
	Limits      query.Limits
	TTL         time.Duration // 0 uses the cache default
	DegradedTTL time.Duration
}

// Service orchestrates hybrid search over the catalog: cache lookup,
// concurrent strategies, rank fusion and result caching.
type Service struct {
	store      CatalogStore
	loader     CatalogLoader
	cache      ResultCache
	strategies []Strategy
	cfg        Config
	flight     singleflight.Group
	logger     *zap.Logger
}

// New creates a search service.
func New(
	store CatalogStore, loader CatalogLoader, cache ResultCache,
	strategies []Strategy, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if cfg.DegradedTTL <= 0 {
		cfg.DegradedTTL = DefaultDegradedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:      store,
		loader:     loader,
		cache:      cache,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger,
	}
	if snap := store.Snapshot(); snap != nil {
		observeCatalog(snap)
	}
	return s
}

// NewQuery builds a query under the service's result limits.
func (s *Service) NewQuery(
	text, category string, speedMin, speedMax *float64, tags []string, maxResults int,
) (query.Query, error) {
	f, err := filter.New(category, speedMin, speedMax, tags)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return query.New(text, f, maxResults, s.cfg.Limits) //nolint:wrapcheck // domain constructor
}

// Search returns the fused ranking for q. Cached sets come back with
// FromCache set. A strategy failure degrades the set; only when no strategy
// produced a ranking does the failure surface as an error.
func (s *Service) Search(ctx context.Context, q query.Query) (result.Set, error) {
	start := time.Now()
	fp := q.Fingerprint()
	snap := s.store.Snapshot()
	if snap == nil {
		return result.Set{}, fmt.Errorf("no catalog loaded: %w", domain.ErrCatalogLoad)
	}
	active := s.active(q)
	if len(active) == 0 {
		s.observe(outcomeError, false, start)
		return result.Set{}, domain.InvalidQueryf("search strategy %q is not available", q.Mode())
	}

	if set, ok := s.cache.Get(fp); ok && set.CatalogVersion() == snap.Version() {
		s.observe(outcomeHit, true, start)
		return set.Cached(), nil
	}

	// Flights are per snapshot so a search started after a reload never
	// joins one still running on the old catalog. The shared computation
	// must not die with the first caller's context.
	key := fp + ":" + strconv.FormatUint(snap.Version(), 10)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.compute(context.WithoutCancel(ctx), q, fp, snap, active)
	})

	select {
	case <-ctx.Done():
		s.observe(outcomeError, false, start)
		return result.Set{}, fmt.Errorf("search: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.observe(outcomeError, false, start)
			return result.Set{}, res.Err
		}
		set := res.Val.(result.Set) //nolint:forcetypeassert // compute always returns result.Set
		if set.Degraded() {
			s.observe(outcomeDegraded, false, start)
		} else {
			s.observe(outcomeMiss, false, start)
		}
		return set, nil
	}
}

// active returns the configured strategies the query's mode allows.
func (s *Service) active(q query.Query) []Strategy {
	m := q.Mode()
	out := make([]Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if m.Allows(st.Name()) {
			out = append(out, st)
		}
	}
	return out
}

// compute runs strategies against snap, fuses, attaches match details and
// caches.
func (s *Service) compute(
	ctx context.Context, q query.Query, fp string, snap *catalog.Snapshot, strategies []Strategy,
) (result.Set, error) {
	log := logger.FromContext(ctx)

	hits := make([][]Hit, len(strategies))
	errs := make([]error, len(strategies))

	var g errgroup.Group
	for i, st := range strategies {
		g.Go(func() error {
			hits[i], errs[i] = st.Rank(ctx, q, snap)
			return nil
		})
	}
	_ = g.Wait()

	var (
		rankings    []ranking
		contributed []string
		failures    []error
	)
	for i, st := range strategies {
		if errs[i] != nil {
			metrics.StrategyFailuresTotal.WithLabelValues(st.Name()).Inc()
			log.Warn("search strategy failed",
				zap.String("strategy", st.Name()),
				zap.String("fingerprint", fp),
				zap.Error(errs[i]),
			)
			failures = append(failures, fmt.Errorf("%s: %w", st.Name(), errs[i]))
			continue
		}
		if len(hits[i]) == 0 {
			continue
		}
		rankings = append(rankings, ranking{strategy: st.Name(), hits: hits[i]})
		contributed = append(contributed, st.Name())
	}

	if len(failures) > 0 && len(rankings) == 0 {
		return result.Set{}, fmt.Errorf("all strategies failed: %w", errors.Join(failures...))
	}

	degraded := len(failures) > 0
	fused := fuseRRF(s.cfg.RRFK, rankings)
	if len(fused) > q.MaxResults() {
		fused = fused[:q.MaxResults()]
	}
	for i, c := range fused {
		if iv, err := snap.Lookup(c.ID()); err == nil {
			fused[i] = c.WithDetail(iv, explain(c, iv, q.Filters()))
		}
	}
	set := result.NewSet(fused, contributed, degraded, fp, snap.Version())

	ttl := s.cfg.TTL
	if degraded {
		ttl = s.cfg.DegradedTTL
	}
	// A reload during computation invalidated the cache; do not repopulate
	// it with a set from the old snapshot.
	if cur := s.store.Snapshot(); cur != nil && cur.Version() == snap.Version() {
		s.cache.Set(fp, set, ttl)
	}

	log.Debug("search computed",
		zap.String("fingerprint", fp),
		zap.Strings("strategies", contributed),
		zap.Bool("degraded", degraded),
		zap.Int("results", set.Len()),
	)
	return set, nil
}

// Reload loads a new snapshot from src, swaps it in and invalidates the cache.
// Searches already running finish on the snapshot they started with.
func (s *Service) Reload(ctx context.Context, src catalog.Source) (*catalog.Snapshot, error) {
	snap, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("reload catalog: %w", err)
	}
	old := s.store.Swap(snap)
	dropped := s.cache.Invalidate()
	observeCatalog(snap)

	var oldVersion uint64
	if old != nil {
		oldVersion = old.Version()
	}
	s.logger.Info("catalog reloaded",
		zap.Uint64("old_version", oldVersion),
		zap.Uint64("version", snap.Version()),
		zap.Int("interventions", snap.Len()),
		zap.Int("cache_entries_dropped", dropped),
	)
	return snap, nil
}

// Lookup returns the intervention with id from the current snapshot.
func (s *Service) Lookup(id string) (intervention.Intervention, error) {
	snap := s.store.Snapshot()
	if snap == nil {
		return intervention.Intervention{}, fmt.Errorf("intervention %q: %w", id, domain.ErrNotFound)
	}
	return snap.Lookup(id) //nolint:wrapcheck // already wrapped with ErrNotFound
}

// Resolve pairs ids with confidences into decision candidates, in input order.
func (s *Service) Resolve(ids []string, confidences []float64) ([]decision.Candidate, error) {
	if len(ids) != len(confidences) {
		return nil, domain.InvalidQueryf("got %d ids and %d confidences", len(ids), len(confidences))
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]decision.Candidate, 0, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, domain.InvalidQueryf("duplicate candidate %q", id)
		}
		seen[id] = struct{}{}

		iv, err := s.Lookup(id)
		if err != nil {
			return nil, err
		}
		c, err := decision.NewCandidate(iv, confidences[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Catalog returns the current snapshot.
func (s *Service) Catalog() *catalog.Snapshot { return s.store.Snapshot() }

func (s *Service) observe(outcome string, cached bool, start time.Time) {
	metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.WithLabelValues(strconv.FormatBool(cached)).Observe(time.Since(start).Seconds())
}

func observeCatalog(snap *catalog.Snapshot) {
	metrics.CatalogInterventions.Set(float64(snap.Len()))
	metrics.CatalogVersion.Set(float64(snap.Version()))
}
