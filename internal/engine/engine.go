// Package engine wires scoring and ingestion into one facade built from config.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/consolidator/internal/cache"
	"github.com/ppiankov/consolidator/internal/embed"
	"github.com/ppiankov/consolidator/internal/ingest"
	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/observability"
	"github.com/ppiankov/consolidator/internal/resilience"
	"github.com/ppiankov/consolidator/internal/score"
	"github.com/ppiankov/consolidator/internal/vectorstore"
	"github.com/ppiankov/consolidator/internal/vectorstore/qdrant"
	"github.com/ppiankov/consolidator/internal/vectorstore/sqlite"
	"github.com/ppiankov/consolidator/internal/worker"
)

// Engine orchestrates confidence calculation and document ingestion
type Engine struct {
	config      model.Config
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracing     *observability.TracerProvider
	embedder    *embed.Guarded // nil when embedding is disabled
	store       *vectorstore.Guarded
	scorer      *score.Scorer
	coordinator *ingest.Coordinator
	history     *ingest.History
}

// Stats is the snapshot polled by dashboards
type Stats struct {
	CacheHitRate        float64                 `json:"cache_hit_rate"`
	Cache               cache.EmbeddingStats    `json:"cache"`
	CircuitBreakerState map[string]string       `json:"circuit_breaker_state"`
	LastReports         []model.IngestionReport `json:"last_reports"`
}

// Option overrides a dependency New would otherwise build from config
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	provider embed.Provider
	store    vectorstore.Store
	fs       afero.Fs
	version  string
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records into m instead of a fresh registry
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithProvider uses p instead of the configured embedding provider
func WithProvider(p embed.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithStore uses s instead of the configured vector store backend
func WithStore(s vectorstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithFs sets the filesystem for the disk cache layer
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithVersion tags exported traces with the build version
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// New builds an engine from cfg
func New(ctx context.Context, cfg model.Config, opts ...Option) (*Engine, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics()
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	e := &Engine{
		config:  cfg,
		logger:  o.logger,
		metrics: o.metrics,
		history: ingest.NewHistory(cfg.History.Size),
	}

	// 1. Tracing
	tp, err := observability.InitTracing(ctx, cfg.Tracing, o.version)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	e.tracing = tp

	retry := resilience.PolicyFromConfig(cfg.Retry)
	onTransition := resilience.WithStateListener(func(name, _, to string) {
		e.metrics.SetBreakerState(name, to)
	})

	// 2. Embedding provider behind limiter, breaker, retry and cache
	provider := o.provider
	if provider == nil {
		provider, err = embed.NewProvider(embed.ConfigFromModel(cfg.Embedding))
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
	}
	if provider != nil {
		breaker := resilience.NewBreaker("embedding", cfg.Breaker, resilience.WithBreakerLogger(e.logger), onTransition)
		e.metrics.SetBreakerState(breaker.Name(), breaker.State())
		e.embedder = embed.NewGuarded(provider, embed.GuardOptions{
			Limiter:  worker.NewLimiter(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
			Breaker:  breaker,
			Retry:    retry,
			Cache:    buildCache(cfg.Cache, o.fs),
			MaxChars: cfg.Embedding.MaxChars,
			Metrics:  e.metrics,
			Logger:   e.logger,
		})
	} else {
		e.logger.Info("embedding disabled, semantic proximity and ingestion writes are unavailable")
	}

	// 3. Vector store behind breaker and retry
	store := o.store
	if store == nil {
		store, err = openStore(ctx, cfg.VectorStore)
		if err != nil {
			return nil, fmt.Errorf("vector store: %w", err)
		}
	}
	storeBreaker := resilience.NewBreaker("vector_store", cfg.Breaker, resilience.WithBreakerLogger(e.logger), onTransition)
	e.metrics.SetBreakerState(storeBreaker.Name(), storeBreaker.State())
	e.store = vectorstore.NewGuarded(store, storeBreaker, retry, e.logger)

	// 4. Scoring
	resolverOpts := []score.ResolverOption{
		score.WithResolverLogger(e.logger),
		score.WithStrategicKeywords(cfg.Scoring.StrategicKeywords),
	}
	if e.embedder != nil {
		resolverOpts = append(resolverOpts, score.WithNeighborFinder(&semanticIndex{embedder: e.embedder, store: e.store}, cfg.Scoring.NeighborCount))
	}
	e.scorer = score.NewScorer(
		score.WithNormalizer(score.NewNormalizer(cfg.Scoring.SimilarityCeiling)),
		score.WithResolver(score.NewResolver(resolverOpts...)),
		score.WithLogger(e.logger),
	)

	// 5. Ingestion
	var embedder ingest.Embedder
	if e.embedder != nil {
		embedder = e.embedder
	}
	e.coordinator = ingest.NewCoordinator(e.store, embedder,
		ingest.WithWorkers(cfg.Concurrency.ChunkWorkers),
		ingest.WithHistory(e.history),
		ingest.WithMetrics(e.metrics),
		ingest.WithLogger(e.logger),
	)

	return e, nil
}

// buildCache assembles the embedding cache layers. Disabled caching still
// coalesces concurrent requests for the same content.
func buildCache(cfg model.CacheConfig, fs afero.Fs) *cache.EmbeddingCache {
	if !cfg.Enabled {
		return cache.NewEmbeddingCache(nil, 0)
	}
	var store cache.Cache = cache.NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	if cfg.DiskDir != "" {
		store = cache.NewLayeredCache(store, cache.NewDiskCache(fs, cfg.DiskDir, cfg.DiskTTL))
	}
	return cache.NewEmbeddingCache(store, cfg.MemoryTTL)
}

func openStore(ctx context.Context, cfg model.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return vectorstore.NewMemoryStore(), nil
	case "qdrant":
		s, err := qdrant.New(cfg.Host, cfg.Port, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Path, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s (supported: memory, qdrant, sqlite)", cfg.Backend)
	}
}

// Config returns the configuration the engine was built from
func (e *Engine) Config() model.Config {
	return e.config
}

// Metrics returns the engine's metrics
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// Logger returns the engine's logger
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// CalculateConfidence scores one item
func (e *Engine) CalculateConfidence(ctx context.Context, item model.ScoredItem, sc score.Context) (model.ConfidenceResult, error) {
	ctx, span := observability.StartConfidenceSpan(ctx, item.ID)
	defer span.End()

	result, err := e.scorer.Calculate(ctx, item, sc)
	if err != nil {
		observability.RecordError(span, err)
		return model.ConfidenceResult{}, err
	}
	observability.RecordConfidenceResult(span, result)
	e.metrics.ObserveConfidence(result)
	return result, nil
}

// CalculateBatch scores items and always returns one result per item, in order
func (e *Engine) CalculateBatch(ctx context.Context, items []model.ScoredItem, sc score.Context) []score.BatchResult {
	results := make([]score.BatchResult, len(items))
	for i, item := range items {
		res, err := e.CalculateConfidence(ctx, item, sc)
		if err != nil {
			res = score.FailedResult(item, err)
		}
		results[i] = score.BatchResult{Index: i, Result: res, Err: err}
	}
	return results
}

// IngestDocument writes the chunks of doc under strategy
func (e *Engine) IngestDocument(ctx context.Context, doc model.Document, chunks []model.ChunkRecord, strategy model.MergeStrategy) (model.IngestionReport, error) {
	return e.coordinator.Ingest(ctx, doc, chunks, strategy)
}

// IngestBatch ingests documents concurrently and returns one report per
// request in request order. A rejected request yields a report whose
// Failures carry the validation error.
func (e *Engine) IngestBatch(ctx context.Context, requests []ingest.Request) []model.IngestionReport {
	reports := make([]model.IngestionReport, len(requests))

	g := new(errgroup.Group)
	g.SetLimit(max(1, e.config.Concurrency.DocumentWorkers))
	for i, req := range requests {
		g.Go(func() error {
			report, err := e.coordinator.Ingest(ctx, req.Document, req.Chunks, req.Strategy)
			if err != nil {
				report = rejectedReport(req, err)
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func rejectedReport(req ingest.Request, err error) model.IngestionReport {
	report := model.IngestionReport{
		DocumentID: req.Document.ID,
		Strategy:   req.Strategy,
		StartedAt:  time.Now().UTC(),
	}
	if errors.Is(err, context.Canceled) {
		err = ingest.ErrCancelled
	}
	report.Record(model.ChunkOutcome{
		Key:    model.DocumentKey(req.Document.ID),
		Action: model.ActionFailed,
		Reason: err.Error(),
	})
	return report
}

// Stats returns cache effectiveness, breaker states and recent reports
func (e *Engine) Stats() Stats {
	s := Stats{
		CircuitBreakerState: map[string]string{},
		LastReports:         e.history.Recent(),
	}
	if e.embedder != nil {
		s.Cache = e.embedder.CacheStats()
		s.CacheHitRate = s.Cache.HitRate
		if b := e.embedder.Breaker(); b != nil {
			s.CircuitBreakerState[b.Name()] = b.State()
		}
	}
	if b := e.store.Breaker(); b != nil {
		s.CircuitBreakerState[b.Name()] = b.State()
	}
	return s
}

// CollectionStats summarizes the vector store contents
func (e *Engine) CollectionStats(ctx context.Context) (vectorstore.CollectionStats, error) {
	return vectorstore.Collect(ctx, e.store)
}

// Ready reports whether the embedding provider answers. The store is
// checked lazily on first use.
func (e *Engine) Ready(ctx context.Context) bool {
	if e.embedder == nil {
		return true
	}
	return e.embedder.IsAvailable(ctx)
}

// Close flushes traces and releases the store
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
