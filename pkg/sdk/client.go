package roadsafe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbValkey "github.com/kailas-cloud/roadsafe/internal/db/valkey"
	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/mode"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
	"github.com/kailas-cloud/roadsafe/internal/repository/embcache"
	"github.com/kailas-cloud/roadsafe/internal/repository/resultcache"
	analyticsuc "github.com/kailas-cloud/roadsafe/internal/usecase/analytics"
	compareuc "github.com/kailas-cloud/roadsafe/internal/usecase/compare"
	healthuc "github.com/kailas-cloud/roadsafe/internal/usecase/health"
	"github.com/kailas-cloud/roadsafe/internal/usecase/indexing"
	planneruc "github.com/kailas-cloud/roadsafe/internal/usecase/planner"
	searchuc "github.com/kailas-cloud/roadsafe/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	sweepInterval           = time.Minute
)

// Internal interfaces, replaced in tests.
type searchUseCase interface {
	NewQuery(text, category string, speedMin, speedMax *float64, tags []string, maxResults int) (query.Query, error)
	Search(ctx context.Context, q query.Query) (result.Set, error)
	Lookup(id string) (intervention.Intervention, error)
	Resolve(ids []string, confidences []float64) ([]decision.Candidate, error)
	Reload(ctx context.Context, src catalog.Source) (*catalog.Snapshot, error)
}

type plannerUseCase interface {
	Optimize(ctx context.Context, cands []decision.Candidate, budget float64, optimize bool) (decision.Plan, error)
}

type compareUseCase interface {
	Compare(ctx context.Context, cands []decision.Candidate) (decision.Comparison, error)
}

type analyticsUseCase interface {
	Stats(ctx context.Context) (analyticsuc.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// batchEmbedder is what the backfill pool and the embedding cache need.
type batchEmbedder interface {
	domain.Embedder
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Client is the roadsafe SDK entry point. It is safe for concurrent use.
type Client struct {
	source    catalog.Source
	search    searchUseCase
	planner   plannerUseCase
	compare   compareUseCase
	analytics analyticsUseCase
	health    healthUseCase
	store     *dbValkey.Store
	backfill  *indexing.Backfiller
	stop      context.CancelFunc
	obs       *observer
}

// New creates a Client and loads the catalog.
// The provided context bounds the initial load and database readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.source == nil {
		return nil, errors.New("roadsafe: catalog required (use WithCatalogFile or WithRecords)")
	}
	if cfg.embedMissing && cfg.embedder == nil {
		return nil, errors.New("roadsafe: WithEmbedMissing requires WithEmbedder")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{source: cfg.source, obs: obs}
	if err := c.wire(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	if len(cfg.valkeyAddrs) > 0 {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.valkeyAddrs,
			Password: cfg.valkeyPassword,
		})
		if err != nil {
			return fmt.Errorf("roadsafe: create valkey store: %w", err)
		}
		c.store = store
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return fmt.Errorf("roadsafe: database not ready: %w", err)
		}
	}

	var emb batchEmbedder
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
		if c.store != nil {
			emb = embcache.New(emb, c.store, 0, nil, nil)
		}
	}

	// Pass nil interface (not typed nil pointer!) when backfill is off.
	var bf interface {
		Backfill(ctx context.Context, records []catalog.Record) ([]catalog.Record, error)
	}
	if cfg.embedMissing {
		b, err := indexing.New(emb, indexing.Config{Workers: cfg.backfillWorkers}, nil)
		if err != nil {
			return fmt.Errorf("roadsafe: backfill pool: %w", err)
		}
		c.backfill = b
		bf = b
	}

	loader := catalog.NewLoader(catalog.LoaderConfig{
		Dimensions:     cfg.dimensions,
		MaxRejectRatio: cfg.maxRejectRatio,
	}, bf, nil)
	snap, err := loader.Load(ctx, cfg.source)
	if err != nil {
		return fmt.Errorf("roadsafe: load catalog: %w", err)
	}
	catalogStore := catalog.NewStore(snap)

	cache := resultcache.New(resultcache.Config{TTL: cfg.cacheTTL, MaxEntries: cfg.cacheMaxEntries})
	sweepCtx, stop := context.WithCancel(context.Background())
	c.stop = stop
	go cache.Run(sweepCtx, sweepInterval)

	var strategies []searchuc.Strategy
	if emb != nil {
		strategies = append(strategies, searchuc.NewVectorStrategy(emb, 0))
	}
	strategies = append(strategies, searchuc.NewStructuredStrategy())

	searchSvc := searchuc.New(catalogStore, loader, cache, strategies, searchuc.Config{
		Limits: query.Limits{Default: cfg.defaultResults, Max: cfg.maxResults},
		TTL:    cfg.cacheTTL,
	}, zap.NewNop())

	var (
		dbPinger  healthuc.DBPinger
		embHealth healthuc.EmbeddingChecker
	)
	if c.store != nil {
		dbPinger = c.store
	}
	if hc, ok := emb.(healthuc.EmbeddingChecker); ok {
		embHealth = hc
	}

	c.search = searchSvc
	c.planner = planneruc.New()
	c.compare = compareuc.New()
	c.analytics = analyticsuc.New(catalogStore)
	c.health = healthuc.New(catalogStore, dbPinger, embHealth)
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.stop != nil {
		c.stop()
	}
	if c.backfill != nil {
		c.backfill.Release()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Search runs a search, hybrid unless q.Strategy narrows it. Most callers
// use NewSearch instead.
func (c *Client) Search(ctx context.Context, q Query) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	dq, err := c.search.NewQuery(q.Text, q.Category, q.SpeedMin, q.SpeedMax, q.Tags, q.MaxResults)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	m, err := mode.Parse(q.Strategy)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w: %w", ErrInvalidQuery, err)
	}
	if dq, err = dq.WithMode(m); err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	set, err := c.search.Search(ctx, dq)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	res = toSearchResult(set)
	res.Mode = string(dq.Mode())
	res.Took = time.Since(start)
	return res, nil
}

// Intervention returns a catalog entry by id.
func (c *Client) Intervention(id string) (Intervention, error) {
	iv, err := c.search.Lookup(id)
	if err != nil {
		return Intervention{}, fmt.Errorf("get intervention: %w", err)
	}
	return iv, nil
}

// PlanBudget selects the interventions that fit budget. With optimize set
// candidates are taken by descending priority per unit cost, otherwise in
// the given order.
func (c *Client) PlanBudget(
	ctx context.Context, cands []CandidateRef, budget float64, optimize bool,
) (plan Plan, err error) {
	start := time.Now()
	defer func() { c.obs.observe("plan_budget", start, err) }()

	resolved, err := c.resolve(cands)
	if err != nil {
		return Plan{}, fmt.Errorf("plan budget: %w", err)
	}
	plan, err = c.planner.Optimize(ctx, resolved, budget, optimize)
	if err != nil {
		return Plan{}, fmt.Errorf("plan budget: %w", err)
	}
	return plan, nil
}

// Compare scores two or more interventions side by side.
func (c *Client) Compare(ctx context.Context, cands []CandidateRef) (cmp Comparison, err error) {
	start := time.Now()
	defer func() { c.obs.observe("compare", start, err) }()

	resolved, err := c.resolve(cands)
	if err != nil {
		return Comparison{}, fmt.Errorf("compare: %w", err)
	}
	cmp, err = c.compare.Compare(ctx, resolved)
	if err != nil {
		return Comparison{}, fmt.Errorf("compare: %w", err)
	}
	return cmp, nil
}

// Reload re-reads the catalog source and swaps it in, dropping cached
// results. It returns the new catalog version. On error the old catalog
// stays in service.
func (c *Client) Reload(ctx context.Context) (version uint64, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err) }()

	snap, err := c.search.Reload(ctx, c.source)
	if err != nil {
		return 0, fmt.Errorf("reload: %w", err)
	}
	return snap.Version(), nil
}

func (c *Client) resolve(cands []CandidateRef) ([]decision.Candidate, error) {
	ids := make([]string, len(cands))
	confs := make([]float64, len(cands))
	for i, ref := range cands {
		ids[i] = ref.ID
		confs[i] = ref.Confidence
	}
	return c.search.Resolve(ids, confs) //nolint:wrapcheck // wrapped by callers
}

func toSearchResult(set result.Set) SearchResult {
	hits := make([]Hit, 0, set.Len())
	for _, sc := range set.Candidates() {
		h := Hit{
			ID:          sc.ID(),
			Rank:        sc.FusedRank(),
			Score:       sc.FusedScore(),
			Confidence:  sc.Confidence(),
			Explanation: sc.Explanation(),
		}
		scores := sc.StrategyScores()
		h.Strategies = make(map[string]StrategyScore, len(scores))
		for name, s := range scores {
			h.Strategies[name] = StrategyScore{Rank: s.Rank, Score: s.Score}
		}
		if iv, ok := sc.Intervention(); ok {
			h.Name = iv.Name()
			h.Category = iv.Category()
		}
		hits = append(hits, h)
	}
	return SearchResult{
		Hits:           hits,
		Strategies:     set.Strategies(),
		Degraded:       set.Degraded(),
		FromCache:      set.FromCache(),
		Fingerprint:    set.Fingerprint(),
		CatalogVersion: set.CatalogVersion(),
	}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(r.TotalTokens)
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// BatchEmbed uses the inner BatchEmbedder when there is one and falls back
// to sequential Embed calls.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts) //nolint:wrapcheck // Embed already wraps
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck forwards to the inner embedder when it can check itself.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedder health: %w", err)
		}
	}
	return nil
}
