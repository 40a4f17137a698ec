package score

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Strategy names
const (
	StrategyLinear      = "linear"
	StrategyLogarithmic = "logarithmic"
	StrategyHybrid      = "hybrid"
	StrategyAdaptive    = "adaptive"
)

// Per-dimension caps. No single dimension can saturate the result on its own.
const (
	MaxCategoryBoost = 0.30
	MaxSemanticBoost = 0.15
	MaxTemporalBoost = 0.05
	MaxManualBoost   = 0.20

	// logarithmicSwitch is the category count above which the logarithmic
	// strategy is selected to avoid saturation
	logarithmicSwitch = 5

	linearPerCategory = 0.06
	logarithmicFactor = 0.10
	adaptiveRate      = 0.5
)

// StrategyInput is what a boost strategy sees
type StrategyInput struct {
	Base          float64
	CategoryCount int
	ZeroRelevance bool
}

// StrategyFunc computes the uncapped category boost for one input.
// The calculator applies MaxCategoryBoost afterwards.
type StrategyFunc func(in StrategyInput) float64

func linearStrategy(in StrategyInput) float64 {
	return linearPerCategory * float64(in.CategoryCount)
}

func logarithmicStrategy(in StrategyInput) float64 {
	return logarithmicFactor * math.Log1p(float64(in.CategoryCount))
}

func hybridStrategy(in StrategyInput) float64 {
	return 0.5*linearStrategy(in) + 0.5*logarithmicStrategy(in)
}

// adaptiveStrategy boosts aggressively for the first categories and tapers
// as the base score rises
func adaptiveStrategy(in StrategyInput) float64 {
	early := MaxCategoryBoost * (1 - math.Exp(-adaptiveRate*float64(in.CategoryCount)))
	return early * (1 - clamp01(in.Base)/2)
}

// BoostInput carries the signals a boost calculation may use
type BoostInput struct {
	Base           float64
	CategoryCount  int
	Neighbors      []float64 // Similarity of nearest neighbors, each in [0,1]
	Manual         *float64
	ModifiedAt     time.Time
	Now            time.Time
	ZeroRelevance  bool
	ForcedStrategy string
}

// Boosts is the structured output of a boost calculation
type Boosts struct {
	Strategy string  `json:"strategy"`
	Category float64 `json:"category"`
	Semantic float64 `json:"semantic"`
	Temporal float64 `json:"temporal"`
	Manual   float64 `json:"manual"`
	Boosted  float64 `json:"boosted"` // clamp(base + all boosts)
}

// Other returns the non-category boost total
func (b Boosts) Other() float64 {
	return b.Semantic + b.Temporal + b.Manual
}

// BoostCalculator dispatches to named boost strategies
type BoostCalculator struct {
	mu         sync.RWMutex
	strategies map[string]StrategyFunc
}

// NewBoostCalculator creates a calculator with the built-in strategies registered
func NewBoostCalculator() *BoostCalculator {
	return &BoostCalculator{
		strategies: map[string]StrategyFunc{
			StrategyLinear:      linearStrategy,
			StrategyLogarithmic: logarithmicStrategy,
			StrategyHybrid:      hybridStrategy,
			StrategyAdaptive:    adaptiveStrategy,
		},
	}
}

// Register adds or replaces a named strategy
func (b *BoostCalculator) Register(name string, fn StrategyFunc) error {
	if name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if fn == nil {
		return fmt.Errorf("strategy %q has no function", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.strategies[name] = fn
	return nil
}

// Strategies returns the registered strategy names, sorted
func (b *BoostCalculator) Strategies() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.strategies))
	for name := range b.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select picks the strategy for an input:
// forced name, else logarithmic above 5 categories, else adaptive for
// zero-relevance items, else hybrid
func (b *BoostCalculator) Select(forced string, categoryCount int, zeroRelevance bool) (string, StrategyFunc, error) {
	name := forced
	if name == "" {
		switch {
		case categoryCount > logarithmicSwitch:
			name = StrategyLogarithmic
		case zeroRelevance:
			name = StrategyAdaptive
		default:
			name = StrategyHybrid
		}
	}

	b.mu.RLock()
	fn, ok := b.strategies[name]
	b.mu.RUnlock()
	if !ok {
		return "", nil, &UnknownStrategyError{Name: name, Available: b.Strategies()}
	}
	return name, fn, nil
}

// Calculate computes every boost dimension and the boosted score
func (b *BoostCalculator) Calculate(in BoostInput) (Boosts, error) {
	name, fn, err := b.Select(in.ForcedStrategy, in.CategoryCount, in.ZeroRelevance)
	if err != nil {
		return Boosts{}, err
	}

	out := Boosts{Strategy: name}
	if in.CategoryCount > 0 {
		out.Category = clamp(fn(StrategyInput{
			Base:          in.Base,
			CategoryCount: in.CategoryCount,
			ZeroRelevance: in.ZeroRelevance,
		}), 0, MaxCategoryBoost)
	}
	out.Semantic = semanticBoost(in.Neighbors)
	out.Temporal = temporalBoost(in.ModifiedAt, in.Now)
	if in.Manual != nil && !math.IsNaN(*in.Manual) {
		out.Manual = clamp(*in.Manual, -MaxManualBoost, MaxManualBoost)
	}

	out.Boosted = clamp01(in.Base + out.Category + out.Other())
	return out, nil
}

// semanticBoost scales the mean neighbor similarity into [0, MaxSemanticBoost]
func semanticBoost(neighbors []float64) float64 {
	mean, ok := meanSimilarity(neighbors)
	if !ok {
		return 0
	}
	return clamp(mean*MaxSemanticBoost, 0, MaxSemanticBoost)
}

// temporalBoost rewards recently modified items
func temporalBoost(modified, now time.Time) float64 {
	if modified.IsZero() {
		return 0
	}
	if now.IsZero() {
		now = time.Now()
	}

	age := now.Sub(modified)
	switch {
	case age < 0:
		return MaxTemporalBoost
	case age <= 7*24*time.Hour:
		return MaxTemporalBoost
	case age <= 30*24*time.Hour:
		return 0.03
	case age <= 90*24*time.Hour:
		return 0.01
	default:
		return 0
	}
}

// meanSimilarity averages the finite neighbor scores, each clamped to [0,1]
func meanSimilarity(neighbors []float64) (float64, bool) {
	var sum float64
	n := 0
	for _, s := range neighbors {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		sum += clamp01(s)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
