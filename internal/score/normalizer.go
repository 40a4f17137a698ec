package score

import (
	"math"

	"github.com/ppiankov/consolidator/internal/model"
)

const (
	// DefaultSimilarityCeiling is the empirical upper bound of raw similarity-search scores
	DefaultSimilarityCeiling = 30.0

	// percentageBandMax is the upper edge of the low percentage band (1, 10]
	percentageBandMax = 10.0
)

// Normalized is a score mapped onto [0,1] together with the scale it came from
type Normalized struct {
	Value  float64           `json:"value"`
	Source model.ScoreSource `json:"source"`
}

// Normalizer maps raw scores of unknown scale onto [0,1]
type Normalizer struct {
	ceiling float64
}

// NewNormalizer creates a normalizer. A ceiling <= 1 falls back to the default.
func NewNormalizer(similarityCeiling float64) *Normalizer {
	if similarityCeiling <= 1 || math.IsNaN(similarityCeiling) || math.IsInf(similarityCeiling, 0) {
		similarityCeiling = DefaultSimilarityCeiling
	}
	return &Normalizer{ceiling: similarityCeiling}
}

// Normalize maps raw onto [0,1]. When hint is empty the scale is detected:
//
//	[0, 1]          already normalized, returned unchanged
//	(1, 10]         percentage, divided by 100
//	(10, ceiling]   raw similarity score, divided by the ceiling
//	(ceiling, ...)  percentage, divided by 100 and clamped
//
// Detection is deterministic and idempotent: normalizing a normalized value
// returns it unchanged.
func (n *Normalizer) Normalize(raw float64, hint model.ScoreSource) (Normalized, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return Normalized{}, &InvalidScoreError{Value: raw}
	}

	switch hint {
	case model.SourceNormalized:
		return Normalized{Value: clamp01(raw), Source: hint}, nil
	case model.SourcePercentage:
		return Normalized{Value: clamp01(raw / 100), Source: hint}, nil
	case model.SourceSimilarity:
		return Normalized{Value: clamp01(raw / n.ceiling), Source: hint}, nil
	}

	switch {
	case raw <= 1:
		return Normalized{Value: raw, Source: model.SourceNormalized}, nil
	case raw <= percentageBandMax:
		return Normalized{Value: raw / 100, Source: model.SourcePercentage}, nil
	case raw <= n.ceiling:
		return Normalized{Value: clamp01(raw / n.ceiling), Source: model.SourceSimilarity}, nil
	default:
		return Normalized{Value: clamp01(raw / 100), Source: model.SourcePercentage}, nil
	}
}

// Ceiling returns the similarity ceiling in use
func (n *Normalizer) Ceiling() float64 {
	return n.ceiling
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
