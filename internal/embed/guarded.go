package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/consolidator/internal/cache"
	"github.com/ppiankov/consolidator/internal/observability"
	"github.com/ppiankov/consolidator/internal/resilience"
	"github.com/ppiankov/consolidator/internal/worker"
)

// GuardOptions configures the protections around a provider. Zero values
// disable the corresponding guard.
type GuardOptions struct {
	Limiter  *worker.Limiter
	Breaker  *resilience.Breaker
	Retry    resilience.RetryPolicy
	Cache    *cache.EmbeddingCache
	MaxChars int
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Guarded wraps a Provider with rate limiting, retries, a circuit breaker and
// the shared embedding cache. It satisfies Provider itself.
type Guarded struct {
	inner   Provider
	limiter *worker.Limiter
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	cache   *cache.EmbeddingCache
	max     int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGuarded wraps inner
func NewGuarded(inner Provider, opts GuardOptions) *Guarded {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	embedCache := opts.Cache
	if embedCache == nil {
		embedCache = cache.NewEmbeddingCache(nil, 0)
	}
	return &Guarded{
		inner:   inner,
		limiter: opts.Limiter,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		cache:   embedCache,
		max:     opts.MaxChars,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

func (g *Guarded) Name() string                         { return g.inner.Name() }
func (g *Guarded) Model() string                        { return g.inner.Model() }
func (g *Guarded) Dimensions() int                      { return g.inner.Dimensions() }
func (g *Guarded) IsAvailable(ctx context.Context) bool { return g.inner.IsAvailable(ctx) }

// Breaker returns the breaker guarding the provider, nil when unguarded
func (g *Guarded) Breaker() *resilience.Breaker {
	return g.breaker
}

// CacheStats returns the embedding cache counters
func (g *Guarded) CacheStats() cache.EmbeddingStats {
	return g.cache.Stats()
}

// Embed returns the vector for text, from cache when possible.
// Failures after retries surface as *resilience.ProviderUnavailableError.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, g.max)
	key := cache.EmbeddingKey(g.inner.Name()+"/"+g.inner.Model(), text)

	vec, hit, err := g.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]float32, error) {
		return g.compute(ctx, text)
	})
	if ctx.Err() == nil {
		// Abandoned waits are not counted by the cache either
		g.metrics.ObserveCacheLookup(hit)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Unavailable(g.inner.Name(), err)
	}
	return vec, nil
}

func (g *Guarded) compute(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartEmbedSpan(ctx, g.inner.Name(), g.inner.Model())
	defer span.End()

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("embedding failed, retrying",
			"provider", g.inner.Name(),
			"error", err,
			"backoff", wait,
		)
	}

	vec, err := resilience.Do(ctx, g.retry, func(ctx context.Context) ([]float32, error) {
		return g.attempt(ctx, text)
	}, notify)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return vec, nil
}

func (g *Guarded) attempt(ctx context.Context, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.inner.Name()); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
	}

	call := func() ([]float32, error) {
		start := time.Now()
		vec, err := g.inner.Embed(ctx, text)
		g.metrics.ObserveEmbedding(g.inner.Name(), time.Since(start), err)
		if err == nil && len(vec) == 0 {
			err = errors.New("provider returned an empty vector")
		}
		return vec, err
	}

	if g.breaker == nil {
		return call()
	}
	return resilience.Call(g.breaker, call)
}
