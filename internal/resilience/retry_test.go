package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{
	MaxTries:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsed:      time.Second,
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var waits int

	out, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary failure")
		}
		return "ok", nil
	}, func(err error, d time.Duration) { waits++ })

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, waits)
}

func TestDo_ExhaustsTries(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("still down")
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "still down")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")

	_, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	}, nil)

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_CircuitOpenNotRetried(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("store: %w", ErrCircuitOpen)
	}, nil)

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroTriesMeansOne(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), RetryPolicy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(ErrCircuitOpen))
	assert.False(t, IsRetryable(errors.New("ollama returned status 404: model not found")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("ollama returned status 503")))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestUnavailable(t *testing.T) {
	assert.NoError(t, Unavailable("ollama", nil))

	err := Unavailable("ollama", errors.New("refused"))
	var pu *ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	assert.Equal(t, "ollama", pu.Provider)
	assert.Equal(t, "ollama unavailable: refused", err.Error())

	// already wrapped errors are not wrapped twice
	again := Unavailable("qdrant", fmt.Errorf("ctx: %w", err))
	require.ErrorAs(t, again, &pu)
	assert.Equal(t, "ollama", pu.Provider)
}
