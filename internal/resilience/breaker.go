package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ppiankov/consolidator/internal/model"
)

// Breaker states as reported in engine stats
const (
	StateClosed   = "closed"
	StateHalfOpen = "half-open"
	StateOpen     = "open"
)

// StateListener observes breaker transitions
type StateListener func(name, from, to string)

// Breaker trips after N consecutive failures inside the counting window
// and probes again after the cooldown
type Breaker struct {
	name      string
	cb        *gobreaker.CircuitBreaker[any]
	logger    *slog.Logger
	listeners []StateListener
}

// BreakerOption configures a Breaker
type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger used for transitions
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStateListener registers a transition callback
func WithStateListener(fn StateListener) BreakerOption {
	return func(b *Breaker) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// NewBreaker creates a breaker for one named dependency
func NewBreaker(name string, cfg model.BreakerConfig, opts ...BreakerOption) *Breaker {
	b := &Breaker{name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	probes := cfg.HalfOpenProbes
	if probes == 0 {
		probes = 1
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		// gobreaker treats 0 as 60s
		cooldown = time.Millisecond
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: probes,
		Interval:    cfg.Window,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the dependency
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			for _, fn := range b.listeners {
				fn(name, from.String(), to.String())
			}
		},
	})
	return b
}

// Name returns the guarded dependency name
func (b *Breaker) Name() string {
	return b.name
}

// State returns closed, half-open or open
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// ConsecutiveFailures returns the current failure streak
func (b *Breaker) ConsecutiveFailures() uint32 {
	return b.cb.Counts().ConsecutiveFailures
}

// Call runs fn through the breaker. While open it fails fast with ErrCircuitOpen.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}
