package model

// AlgorithmVersion tags every ConfidenceResult with the scoring revision that produced it
const AlgorithmVersion = "consolidated-v2"

// ConfidenceLabel is advisory metadata derived from the final score
type ConfidenceLabel string

const (
	LabelHigh      ConfidenceLabel = "high"
	LabelMedium    ConfidenceLabel = "medium"
	LabelLow       ConfidenceLabel = "low"
	LabelUncertain ConfidenceLabel = "uncertain"
)

// LabelFor maps a final score onto its confidence label
func LabelFor(score float64) ConfidenceLabel {
	switch {
	case score >= 0.85:
		return LabelHigh
	case score >= 0.70:
		return LabelMedium
	case score >= 0.50:
		return LabelLow
	default:
		return LabelUncertain
	}
}

// Breakdown is the per-dimension contribution record of a confidence calculation
type Breakdown struct {
	Base           float64 `json:"base" yaml:"base"`
	CategoryBoost  float64 `json:"category_boost" yaml:"category_boost"`
	SemanticBoost  float64 `json:"semantic_boost" yaml:"semantic_boost"`
	TemporalBoost  float64 `json:"temporal_boost" yaml:"temporal_boost"`
	ManualBoost    float64 `json:"manual_boost" yaml:"manual_boost"`
	ContextBoost   float64 `json:"context_boost" yaml:"context_boost"`
	ZeroResolution float64 `json:"zero_resolution" yaml:"zero_resolution"`
}

// Weights are the dynamic aggregation weights used for one calculation.
// They always sum to 1.
type Weights struct {
	Base           float64 `json:"base" yaml:"base"`
	CategoryBoost  float64 `json:"category_boost" yaml:"category_boost"`
	OtherBoosts    float64 `json:"other_boosts" yaml:"other_boosts"`
	Contextual     float64 `json:"contextual" yaml:"contextual"`
	ZeroResolution float64 `json:"zero_resolution" yaml:"zero_resolution"`
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Base + w.CategoryBoost + w.OtherBoosts + w.Contextual + w.ZeroResolution
}

// Factor is one zero-relevance sub-score with its rationale
type Factor struct {
	Name      string  `json:"name" yaml:"name"`
	Score     float64 `json:"score" yaml:"score"`
	Rationale string  `json:"rationale" yaml:"rationale"`
	Degraded  bool    `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// ConfidenceResult is created fresh by every calculation and never mutated
// afterwards. Slices are owned by the result.
type ConfidenceResult struct {
	ItemID           string          `json:"item_id" yaml:"item_id"`
	FinalScore       float64         `json:"final_score" yaml:"final_score"`
	Label            ConfidenceLabel `json:"label" yaml:"label"`
	Breakdown        Breakdown       `json:"breakdown" yaml:"breakdown"`
	Weights          Weights         `json:"weights" yaml:"weights"`
	Strategy         string          `json:"strategy" yaml:"strategy"`
	DetectedSource   ScoreSource     `json:"detected_source" yaml:"detected_source"`
	Factors          []Factor        `json:"factors,omitempty" yaml:"factors,omitempty"` // Zero-relevance factors, when resolution ran
	Degraded         []string        `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	AlgorithmVersion string          `json:"algorithm_version" yaml:"algorithm_version"`
}

// IsDegraded reports whether any input had to be substituted or any factor was unavailable
func (r ConfidenceResult) IsDegraded() bool {
	return len(r.Degraded) > 0
}
