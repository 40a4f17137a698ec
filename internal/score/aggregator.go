package score

import (
	"math"

	"github.com/ppiankov/consolidator/internal/extract"
	"github.com/ppiankov/consolidator/internal/model"
)

const (
	contextPerSignal = 0.05
	maxContextBoost  = 0.15

	// categoryShiftThreshold is the category count above which weight moves
	// from base to the category dimension
	categoryShiftThreshold = 3
	categoryShift          = 0.1

	// scorePrecision is the resolution final scores are reported at, so a
	// saturated weighted sum lands on 1 rather than a rounding error below it
	scorePrecision = 1e9
)

// DefaultWeights are used when the base score is non-zero and few categories are present
var DefaultWeights = model.Weights{
	Base:          0.4,
	CategoryBoost: 0.3,
	OtherBoosts:   0.2,
	Contextual:    0.1,
}

// AggregateInput is everything the aggregator combines
type AggregateInput struct {
	Item       model.ScoredItem
	Normalized Normalized
	Boosts     Boosts
	Resolution *Resolution
	Degraded   []string
}

// Aggregator combines base, boosts and zero resolution into a ConfidenceResult.
// Pure computation.
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Weights returns the dynamic weights for a base score and category count
func (a *Aggregator) Weights(base float64, categoryCount int) model.Weights {
	w := DefaultWeights

	if base == 0 {
		w.CategoryBoost += w.Base / 2
		w.ZeroResolution += w.Base / 2
		w.Base = 0
	}

	if categoryCount > categoryShiftThreshold {
		shift := categoryShift
		if w.Base < shift {
			shift = w.Base
		}
		w.Base -= shift
		w.CategoryBoost += shift
	}

	return w
}

// ContextBoost scores the item's structural booleans, from the collaborator
// and from its content
func (a *Aggregator) ContextBoost(item model.ScoredItem) float64 {
	detected := extract.DetectStructure(item.Content)
	n := 0
	for _, present := range []bool{
		item.Structure.HasHeadings || detected.Headings,
		item.Structure.HasLists || detected.Lists,
		item.Structure.HasLinks || detected.Links,
	} {
		if present {
			n++
		}
	}
	return clamp(float64(n)*contextPerSignal, 0, maxContextBoost)
}

// Aggregate computes the final score as the weighted sum of the per-dimension
// scores, each of which is base plus that dimension's boost
func (a *Aggregator) Aggregate(in AggregateInput) model.ConfidenceResult {
	base := in.Normalized.Value
	categories := len(in.Item.UniqueCategories())
	w := a.Weights(base, categories)
	ctxBoost := a.ContextBoost(in.Item)

	breakdown := model.Breakdown{
		Base:          base,
		CategoryBoost: in.Boosts.Category,
		SemanticBoost: in.Boosts.Semantic,
		TemporalBoost: in.Boosts.Temporal,
		ManualBoost:   in.Boosts.Manual,
		ContextBoost:  ctxBoost,
	}

	var factors []model.Factor
	if in.Resolution != nil {
		breakdown.ZeroResolution = in.Resolution.Score
		factors = append(factors, in.Resolution.Factors...)
	}

	final := w.Base*base +
		w.CategoryBoost*clamp01(base+in.Boosts.Category) +
		w.OtherBoosts*clamp01(base+in.Boosts.Other()) +
		w.Contextual*clamp01(base+ctxBoost) +
		w.ZeroResolution*breakdown.ZeroResolution
	final = clamp01(math.Round(final*scorePrecision) / scorePrecision)

	var degraded []string
	degraded = append(degraded, in.Degraded...)
	if in.Resolution != nil {
		degraded = append(degraded, in.Resolution.Degraded...)
	}

	return model.ConfidenceResult{
		ItemID:           in.Item.ID,
		FinalScore:       final,
		Label:            model.LabelFor(final),
		Breakdown:        breakdown,
		Weights:          w,
		Strategy:         in.Boosts.Strategy,
		DetectedSource:   in.Normalized.Source,
		Factors:          factors,
		Degraded:         degraded,
		AlgorithmVersion: model.AlgorithmVersion,
	}
}
