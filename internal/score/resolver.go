package score

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/consolidator/internal/extract"
	"github.com/ppiankov/consolidator/internal/model"
)

// Factor names
const (
	FactorSemantic   = "semantic_proximity"
	FactorStructural = "structural_density"
	FactorContextual = "contextual_relevance"
	FactorDensity    = "information_density"
)

const (
	structuralPerSignal = 0.06
	maxStructural       = 0.30
	keywordWeight       = 0.25
)

// NeighborFinder returns the similarity of the k nearest stored neighbors of text.
// Implementations embed the text and query the vector store.
type NeighborFinder interface {
	Neighbors(ctx context.Context, text string, k int) ([]float64, error)
}

// FactorWeights are the relative weights of the four zero-relevance factors.
// They are normalized by their sum, so only ratios matter.
type FactorWeights struct {
	Semantic   float64 `json:"semantic"`
	Structural float64 `json:"structural"`
	Contextual float64 `json:"contextual"`
	Density    float64 `json:"density"`
}

// EqualFactorWeights weighs every factor the same
var EqualFactorWeights = FactorWeights{Semantic: 1, Structural: 1, Contextual: 1, Density: 1}

func (w FactorWeights) sum() float64 {
	return w.Semantic + w.Structural + w.Contextual + w.Density
}

// Resolution is the substitute score produced for a zero-relevance item
type Resolution struct {
	Score    float64        `json:"score"`
	Factors  []model.Factor `json:"factors"`
	Degraded []string       `json:"degraded,omitempty"`
}

// Resolver derives a substitute score for items whose base score is exactly 0
type Resolver struct {
	finder    NeighborFinder
	keywords  []string
	neighbors int
	weights   FactorWeights
	logger    *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithNeighborFinder enables the semantic proximity factor
func WithNeighborFinder(f NeighborFinder, k int) ResolverOption {
	return func(r *Resolver) {
		r.finder = f
		if k > 0 {
			r.neighbors = k
		}
	}
}

// WithStrategicKeywords replaces the path keywords used for contextual relevance
func WithStrategicKeywords(keywords []string) ResolverOption {
	return func(r *Resolver) {
		r.keywords = keywords
	}
}

// WithFactorWeights overrides the equal default factor weights
func WithFactorWeights(w FactorWeights) ResolverOption {
	return func(r *Resolver) {
		if w.sum() > 0 {
			r.weights = w
		}
	}
}

// WithResolverLogger sets the logger
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		keywords:  model.DefaultStrategicKeywords,
		neighbors: 5,
		weights:   EqualFactorWeights,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the four factors and their weighted average.
// It never fails: an unavailable semantic index degrades that factor to 0.
// Precomputed neighbor scores, when given, are used instead of a lookup.
func (r *Resolver) Resolve(ctx context.Context, item model.ScoredItem, neighbors []float64) Resolution {
	semantic := r.semanticProximity(ctx, item, neighbors)
	structural := r.structuralDensity(item)
	contextual := r.contextualRelevance(item)
	density := r.informationDensity(item)

	factors := []model.Factor{semantic, structural, contextual, density}
	weights := []float64{r.weights.Semantic, r.weights.Structural, r.weights.Contextual, r.weights.Density}

	var score float64
	for i, f := range factors {
		score += f.Score * weights[i]
	}
	score = clamp01(score / r.weights.sum())

	res := Resolution{Score: score, Factors: factors}
	for _, f := range factors {
		if f.Degraded {
			res.Degraded = append(res.Degraded, fmt.Sprintf("%s: %s", f.Name, f.Rationale))
		}
	}
	return res
}

func (r *Resolver) semanticProximity(ctx context.Context, item model.ScoredItem, neighbors []float64) model.Factor {
	f := model.Factor{Name: FactorSemantic}

	if len(neighbors) == 0 {
		if r.finder == nil {
			f.Rationale = "no semantic index configured"
			return f
		}
		if strings.TrimSpace(item.Content) == "" {
			f.Rationale = "no content to embed"
			return f
		}

		found, err := r.finder.Neighbors(ctx, item.Content, r.neighbors)
		if err != nil {
			r.logger.Debug("semantic proximity unavailable", "item", item.ID, "error", err)
			f.Rationale = fmt.Sprintf("semantic index unavailable: %v", err)
			f.Degraded = true
			return f
		}
		neighbors = found
	}

	mean, ok := meanSimilarity(neighbors)
	if !ok {
		f.Rationale = "no neighbors found"
		return f
	}
	f.Score = mean
	f.Rationale = fmt.Sprintf("mean similarity %.3f over %d neighbors", mean, len(neighbors))
	return f
}

func (r *Resolver) structuralDensity(item model.ScoredItem) model.Factor {
	signals := extract.DetectStructure(item.Content).Merge(extract.Signals{
		Headings: item.Structure.HasHeadings,
		Lists:    item.Structure.HasLists,
		Links:    item.Structure.HasLinks,
	})

	n := signals.Count()
	f := model.Factor{
		Name:  FactorStructural,
		Score: clamp(float64(n)*structuralPerSignal, 0, maxStructural),
	}
	if n == 0 {
		f.Rationale = "no structural signals"
	} else {
		f.Rationale = fmt.Sprintf("%d signals: %s", n, strings.Join(signals.Names(), ", "))
	}
	return f
}

func (r *Resolver) contextualRelevance(item model.ScoredItem) model.Factor {
	f := model.Factor{Name: FactorContextual}
	if item.Path == "" {
		f.Rationale = "no path"
		return f
	}

	matched := extract.MatchKeywords(extract.PathTokens(item.Path), r.keywords)
	f.Score = clamp01(float64(len(matched)) * keywordWeight)
	if len(matched) == 0 {
		f.Rationale = "no strategic keywords in path"
	} else {
		f.Rationale = "path matches " + strings.Join(matched, ", ")
	}
	return f
}

func (r *Resolver) informationDensity(item model.ScoredItem) model.Factor {
	density, unique, total := extract.InformationDensity(item.Content)
	f := model.Factor{Name: FactorDensity, Score: density}
	if total == 0 {
		f.Rationale = "empty content"
	} else {
		f.Rationale = fmt.Sprintf("%d unique of %d tokens", unique, total)
	}
	return f
}
