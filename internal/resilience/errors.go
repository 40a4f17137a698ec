package resilience

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned without calling the dependency while its breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

// ProviderUnavailableError wraps a failure to reach an embedding provider or vector store
// after retries and circuit breaking
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a ProviderUnavailableError unless it already is one
func Unavailable(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pu *ProviderUnavailableError
	if errors.As(err, &pu) {
		return err
	}
	return &ProviderUnavailableError{Provider: provider, Err: err}
}
