package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/observability"
	"github.com/ppiankov/consolidator/internal/resilience"
)

// Guarded wraps a Store with retries and a circuit breaker. Errors that
// survive both surface as *resilience.ProviderUnavailableError.
type Guarded struct {
	inner   Store
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	logger  *slog.Logger
}

// NewGuarded wraps inner. A nil breaker disables circuit breaking.
func NewGuarded(inner Store, breaker *resilience.Breaker, retry resilience.RetryPolicy, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{inner: inner, breaker: breaker, retry: retry, logger: logger}
}

// Breaker returns the breaker guarding the store
func (g *Guarded) Breaker() *resilience.Breaker {
	return g.breaker
}

// Unwrap returns the wrapped store
func (g *Guarded) Unwrap() Store {
	return g.inner
}

func (g *Guarded) Backend() string { return g.inner.Backend() }

func (g *Guarded) EnsureCollection(ctx context.Context, dims int) error {
	_, err := guard(ctx, g, "ensure_collection", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.EnsureCollection(ctx, dims)
	})
	return err
}

func (g *Guarded) Lookup(ctx context.Context, key model.DedupKey) (*Point, error) {
	return guard(ctx, g, "lookup", func(ctx context.Context) (*Point, error) {
		return g.inner.Lookup(ctx, key)
	})
}

func (g *Guarded) Upsert(ctx context.Context, p Point) error {
	_, err := guard(ctx, g, "upsert", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.Upsert(ctx, p)
	})
	return err
}

func (g *Guarded) SetPayload(ctx context.Context, id string, payload model.Payload) error {
	_, err := guard(ctx, g, "set_payload", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.SetPayload(ctx, id, payload)
	})
	return err
}

func (g *Guarded) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	return guard(ctx, g, "search", func(ctx context.Context) ([]Match, error) {
		return g.inner.Search(ctx, vector, limit)
	})
}

func (g *Guarded) Count(ctx context.Context) (int, error) {
	return guard(ctx, g, "count", g.inner.Count)
}

// Scroll is not retried: fn may already have seen part of the collection
func (g *Guarded) Scroll(ctx context.Context, fn func(model.Payload) error) error {
	err := g.inner.Scroll(ctx, fn)
	if err != nil && ctx.Err() == nil {
		return resilience.Unavailable("vector store "+g.inner.Backend(), err)
	}
	return err
}

func (g *Guarded) Close() error { return g.inner.Close() }

func guard[T any](ctx context.Context, g *Guarded, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := observability.StartStoreSpan(ctx, g.inner.Backend(), op)
	defer span.End()

	attempt := func(ctx context.Context) (T, error) {
		var out T
		var err error
		if g.breaker == nil {
			out, err = fn(ctx)
		} else {
			out, err = resilience.Call(g.breaker, func() (T, error) { return fn(ctx) })
		}
		if errors.Is(err, ErrDimensionMismatch) {
			return out, resilience.Permanent(err)
		}
		return out, err
	}
	notify := func(err error, wait time.Duration) {
		g.logger.Warn("vector store call failed, retrying",
			"backend", g.inner.Backend(),
			"op", op,
			"error", err,
			"backoff", wait,
		)
	}

	out, err := resilience.Do(ctx, g.retry, attempt, notify)
	if err != nil {
		observability.RecordError(span, err)
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, resilience.Unavailable("vector store "+g.inner.Backend(), err)
	}
	return out, nil
}
