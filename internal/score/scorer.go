package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/consolidator/internal/model"
)

// Context carries per-call scoring options
type Context struct {
	ForcedStrategy string    `json:"strategy,omitempty"`
	Neighbors      []float64 `json:"neighbors,omitempty"` // Precomputed neighbor similarities
	ManualBoost    *float64  `json:"manual_boost,omitempty"`
	Now            time.Time `json:"now,omitempty"` // Reference time for recency, defaults to time.Now
}

// BatchResult is one item's outcome in a batch calculation
type BatchResult struct {
	Index  int                    `json:"index"`
	Result model.ConfidenceResult `json:"result"`
	Err    error                  `json:"-"`
}

// Scorer runs the full confidence pipeline:
// normalize, boost, resolve when zero, aggregate
type Scorer struct {
	normalizer *Normalizer
	boosts     *BoostCalculator
	resolver   *Resolver
	aggregator *Aggregator
	logger     *slog.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithNormalizer replaces the normalizer
func WithNormalizer(n *Normalizer) Option {
	return func(s *Scorer) { s.normalizer = n }
}

// WithBoostCalculator replaces the boost calculator
func WithBoostCalculator(b *BoostCalculator) Option {
	return func(s *Scorer) { s.boosts = b }
}

// WithResolver replaces the zero-relevance resolver
func WithResolver(r *Resolver) Option {
	return func(s *Scorer) { s.resolver = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScorer creates a scorer with default components
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		normalizer: NewNormalizer(DefaultSimilarityCeiling),
		boosts:     NewBoostCalculator(),
		aggregator: NewAggregator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = NewResolver(WithResolverLogger(s.logger))
	}
	return s
}

// Boosts exposes the boost calculator so callers can register strategies
func (s *Scorer) Boosts() *BoostCalculator {
	return s.boosts
}

// Calculate computes a fresh ConfidenceResult for item.
// An invalid raw score is replaced by 0 and recorded as degraded.
// An unknown forced strategy is returned as an error.
func (s *Scorer) Calculate(ctx context.Context, item model.ScoredItem, sc Context) (model.ConfidenceResult, error) {
	var degraded []string

	norm, err := s.normalizer.Normalize(item.RawScore, item.ScoreSource)
	if err != nil {
		var invalid *InvalidScoreError
		if !errors.As(err, &invalid) {
			return model.ConfidenceResult{}, err
		}
		s.logger.Warn("invalid raw score, substituting 0", "item", item.ID, "error", err)
		degraded = append(degraded, fmt.Sprintf("raw score: %v, substituted 0", err))
		norm = Normalized{Value: 0, Source: item.ScoreSource}
	}

	zero := norm.Value == 0
	boosts, err := s.boosts.Calculate(BoostInput{
		Base:           norm.Value,
		CategoryCount:  len(item.UniqueCategories()),
		Neighbors:      sc.Neighbors,
		Manual:         sc.ManualBoost,
		ModifiedAt:     item.ModifiedAt,
		Now:            sc.Now,
		ZeroRelevance:  zero,
		ForcedStrategy: sc.ForcedStrategy,
	})
	if err != nil {
		return model.ConfidenceResult{}, fmt.Errorf("item %s: %w", item.ID, err)
	}

	var resolution *Resolution
	if zero {
		res := s.resolver.Resolve(ctx, item, sc.Neighbors)
		resolution = &res
	}

	return s.aggregator.Aggregate(AggregateInput{
		Item:       item,
		Normalized: norm,
		Boosts:     boosts,
		Resolution: resolution,
		Degraded:   degraded,
	}), nil
}

// CalculateBatch scores every item and always returns one result per item,
// in input order. Per-item errors are captured, never abort the batch.
func (s *Scorer) CalculateBatch(ctx context.Context, items []model.ScoredItem, sc Context) []BatchResult {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		res, err := s.Calculate(ctx, item, sc)
		if err != nil {
			res = FailedResult(item, err)
		}
		results[i] = BatchResult{Index: i, Result: res, Err: err}
	}
	return results
}

// FailedResult is the placeholder reported for an item that could not be scored
func FailedResult(item model.ScoredItem, err error) model.ConfidenceResult {
	return model.ConfidenceResult{
		ItemID:           item.ID,
		Label:            model.LabelUncertain,
		Degraded:         []string{err.Error()},
		AlgorithmVersion: model.AlgorithmVersion,
	}
}
