package score

import (
	"fmt"
	"math"
)

// InvalidScoreError is returned for raw scores that are NaN, infinite or negative
type InvalidScoreError struct {
	Value float64
}

func (e *InvalidScoreError) Error() string {
	switch {
	case math.IsNaN(e.Value):
		return "invalid score: NaN"
	case math.IsInf(e.Value, 0):
		return fmt.Sprintf("invalid score: non-finite value %v", e.Value)
	default:
		return fmt.Sprintf("invalid score: negative value %v", e.Value)
	}
}

// UnknownStrategyError is returned when a forced boost strategy is not registered
type UnknownStrategyError struct {
	Name      string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown boost strategy %q (registered: %v)", e.Name, e.Available)
}
