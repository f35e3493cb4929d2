package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/config"
	dbValkey "github.com/kailas-cloud/roadsafe/internal/db/valkey"
	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	logpkg "github.com/kailas-cloud/roadsafe/internal/logger"
	"github.com/kailas-cloud/roadsafe/internal/metrics"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
	"github.com/kailas-cloud/roadsafe/internal/repository/embcache"
	"github.com/kailas-cloud/roadsafe/internal/repository/resultcache"
	chiTransport "github.com/kailas-cloud/roadsafe/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/roadsafe/internal/transport/openai"
	analyticsuc "github.com/kailas-cloud/roadsafe/internal/usecase/analytics"
	compareuc "github.com/kailas-cloud/roadsafe/internal/usecase/compare"
	embeddinguc "github.com/kailas-cloud/roadsafe/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/roadsafe/internal/usecase/health"
	"github.com/kailas-cloud/roadsafe/internal/usecase/indexing"
	planneruc "github.com/kailas-cloud/roadsafe/internal/usecase/planner"
	searchuc "github.com/kailas-cloud/roadsafe/internal/usecase/search"
	"github.com/kailas-cloud/roadsafe/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting roadsafe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_path", cfg.Catalog.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	// The database only backs the embedding cache.
	var store *dbValkey.Store
	if cfg.Database.Enabled() {
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	}

	var (
		queryEmbedder *domain.InstructionEmbedder
		docEmbedder   *domain.InstructionEmbedder
	)
	if cfg.Embedding.Provider != "" {
		queryEmbedder = buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
		docEmbedder = buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("No embedding provider configured, vector search disabled")
	}

	// Pass nil interface (not typed nil pointer!) when backfill is off.
	var backfill interface {
		Backfill(ctx context.Context, records []catalog.Record) ([]catalog.Record, error)
	}
	if cfg.Catalog.EmbedMissing && docEmbedder != nil {
		bf, err := indexing.New(docEmbedder, indexing.Config{Workers: cfg.Catalog.BackfillWorkers}, logger)
		if err != nil {
			logger.Fatal("Failed to create backfill pool", zap.Error(err))
		}
		defer bf.Release()
		backfill = bf
	}

	source := catalog.NewFileSource(cfg.Catalog.Path)
	loader := catalog.NewLoader(catalog.LoaderConfig{
		Dimensions:     cfg.Catalog.Dimensions,
		MaxRejectRatio: cfg.Catalog.MaxRejectRatio,
	}, backfill, logger)

	snap, err := loader.Load(ctx, source)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}
	catalogStore := catalog.NewStore(snap)

	cache := resultcache.New(resultcache.Config{
		TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
		MaxEntries: cfg.Cache.MaxEntries,
	}, resultcache.WithLogger(logger))
	go cache.Run(ctx, time.Duration(cfg.Cache.SweepIntervalSec)*time.Second)

	var strategies []searchuc.Strategy
	if queryEmbedder != nil {
		strategies = append(strategies, searchuc.NewVectorStrategy(queryEmbedder, cfg.Search.CandidatePool))
	}
	strategies = append(strategies, searchuc.NewStructuredStrategy())

	searchSvc := searchuc.New(catalogStore, loader, cache, strategies, searchuc.Config{
		RRFK: cfg.Search.RRFK,
		Limits: query.Limits{
			Default: cfg.Search.DefaultMaxResult,
			Max:     cfg.Search.MaxResultsLimit,
		},
		TTL:         time.Duration(cfg.Cache.TTLSec) * time.Second,
		DegradedTTL: time.Duration(cfg.Cache.DegradedTTLSec) * time.Second,
	}, logger)

	// Pass nil interfaces (not typed nil pointers!) for absent dependencies.
	var (
		dbPinger  healthuc.DBPinger
		embHealth healthuc.EmbeddingChecker
	)
	if store != nil {
		dbPinger = store
	}
	if queryEmbedder != nil {
		embHealth = queryEmbedder
	}
	healthSvc := healthuc.New(catalogStore, dbPinger, embHealth)

	server := chiTransport.NewServer(searchSvc, planneruc.New(), compareuc.New(),
		analyticsuc.New(catalogStore), healthSvc, source, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// store may be nil, in which case embeddings are not cached.
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	store *dbValkey.Store,
	logger *zap.Logger,
) *domain.InstructionEmbedder {
	provCfg := embCfg.Providers[embCfg.Provider]

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Timeout:    time.Duration(embCfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store,
			time.Duration(embCfg.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, embCfg.Provider, embCfg.Model, embCfg.BatchSize, logger,
	)

	// Outermost, so the cache key includes the instruction.
	return domain.NewInstructionEmbedder(embedder, instruction)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("cache", ww.Header().Get("X-Cache")),
			)
		})
	}
}
