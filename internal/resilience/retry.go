package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ppiankov/consolidator/internal/model"
)

// RetryPolicy bounds exponential backoff for one dependency
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// PolicyFromConfig converts the retry config section
func PolicyFromConfig(cfg model.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxTries:        cfg.MaxTries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		MaxElapsed:      cfg.MaxElapsed,
	}
}

// NoRetry makes exactly one attempt
var NoRetry = RetryPolicy{MaxTries: 1}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy is exhausted.
// notify, when non-nil, is called before every wait.
func Do[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error), notify func(err error, wait time.Duration)) (T, error) {
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(tries),
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	return backoff.Retry(ctx, func() (T, error) {
		out, err := op(ctx)
		if err != nil && !IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, opts...)
}

// IsRetryable reports whether an error is transient
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancelled, or the breaker is already failing fast
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := err.Error()
	for _, code := range []string{"400", "401", "403", "404", "422"} {
		if strings.Contains(errStr, "status "+code) || strings.Contains(errStr, "status code: "+code) {
			return false
		}
	}

	// Unknown errors are retried
	return true
}
