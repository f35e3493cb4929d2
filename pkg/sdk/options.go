package roadsafe

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	source catalog.Source

	embedder        Embedder
	embedMissing    bool
	backfillWorkers int

	dimensions     int
	maxRejectRatio float64

	cacheTTL        time.Duration
	cacheMaxEntries int
	defaultResults  int
	maxResults      int

	valkeyAddrs    []string
	valkeyPassword string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithCatalogFile loads the catalog from a JSON file. Reload re-reads it.
func WithCatalogFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = catalog.NewFileSource(path)
	})
}

// WithRecords serves a fixed in-memory catalog.
func WithRecords(records ...Record) Option {
	return optionFunc(func(c *clientConfig) {
		c.source = catalog.StaticSource(records)
	})
}

// WithEmbedder enables the vector strategy.
// Without it, only structured filters rank results.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbedMissing embeds catalog records that ship without a vector, using
// the configured embedder and a pool of workers (0 picks a default).
func WithEmbedMissing(workers int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedMissing = true
		c.backfillWorkers = workers
	})
}

// WithDimensions pins the catalog embedding dimension.
// Defaults to the first valid record's.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithMaxRejectRatio tolerates up to ratio (0..1) invalid catalog records.
// Default: 0, any invalid record fails the load.
func WithMaxRejectRatio(ratio float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxRejectRatio = ratio
	})
}

// WithResultCache sets the search result cache TTL and capacity.
// Defaults: 10 minutes, 1000 entries.
func WithResultCache(ttl time.Duration, maxEntries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
		c.cacheMaxEntries = maxEntries
	})
}

// WithResultLimits sets the default and maximum max_results.
// Defaults: 5 and 50.
func WithResultLimits(defaultResults, maxResults int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultResults = defaultResults
		c.maxResults = maxResults
	})
}

// WithValkey caches query embeddings in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.valkeyAddrs = []string{addr}
		c.valkeyPassword = password
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
