package score

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
)

type fakeFinder struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeFinder) Neighbors(ctx context.Context, text string, k int) ([]float64, error) {
	f.calls++
	return f.scores, f.err
}

func factorByName(t *testing.T, res Resolution, name string) model.Factor {
	t.Helper()
	for _, f := range res.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %s not found", name)
	return model.Factor{}
}

func TestResolver_AllFactors(t *testing.T) {
	finder := &fakeFinder{scores: []float64{0.8, 0.6}}
	r := NewResolver(WithNeighborFinder(finder, 3))

	item := model.ScoredItem{
		ID:      "a",
		Path:    "notes/architecture-decision.md",
		Content: "# Heading\n\n- alpha beta\n- alpha beta",
	}
	res := r.Resolve(context.Background(), item, nil)

	require.Len(t, res.Factors, 4)
	assert.Equal(t, 1, finder.calls)
	assert.Empty(t, res.Degraded)

	assert.InDelta(t, 0.7, factorByName(t, res, FactorSemantic).Score, 1e-9)
	assert.InDelta(t, 0.12, factorByName(t, res, FactorStructural).Score, 1e-9)
	assert.InDelta(t, 0.5, factorByName(t, res, FactorContextual).Score, 1e-9)
	// heading, alpha, beta unique over 5 tokens
	assert.InDelta(t, 0.6, factorByName(t, res, FactorDensity).Score, 1e-9)

	assert.InDelta(t, (0.7+0.12+0.5+0.6)/4, res.Score, 1e-9)
}

func TestResolver_ProviderUnavailableDegrades(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection refused")}
	r := NewResolver(WithNeighborFinder(finder, 5))

	res := r.Resolve(context.Background(), model.ScoredItem{ID: "a", Content: "some useful words"}, nil)

	semantic := factorByName(t, res, FactorSemantic)
	assert.Zero(t, semantic.Score)
	assert.True(t, semantic.Degraded)
	assert.Contains(t, semantic.Rationale, "connection refused")
	require.Len(t, res.Degraded, 1)
	assert.Greater(t, res.Score, 0.0, "density still contributes")
}

func TestResolver_PrecomputedNeighborsSkipLookup(t *testing.T) {
	finder := &fakeFinder{scores: []float64{0.1}}
	r := NewResolver(WithNeighborFinder(finder, 5))

	res := r.Resolve(context.Background(), model.ScoredItem{Content: "text here"}, []float64{0.9})

	assert.Zero(t, finder.calls)
	assert.InDelta(t, 0.9, factorByName(t, res, FactorSemantic).Score, 1e-9)
}

func TestResolver_NoFinder(t *testing.T) {
	r := NewResolver()

	res := r.Resolve(context.Background(), model.ScoredItem{}, nil)

	assert.Zero(t, res.Score)
	assert.Empty(t, res.Degraded)
	assert.Equal(t, "no semantic index configured", factorByName(t, res, FactorSemantic).Rationale)
}

func TestResolver_StructuralCapAndCollaboratorSignals(t *testing.T) {
	r := NewResolver()

	item := model.ScoredItem{
		Content:   "# T\n\n- a\n\n**bold** [x](http://e.com)\n\n```\ncode\n```",
		Structure: model.Structure{HasHeadings: true},
	}
	res := r.Resolve(context.Background(), item, nil)
	assert.InDelta(t, maxStructural, factorByName(t, res, FactorStructural).Score, 1e-9)

	plain := model.ScoredItem{Content: "plain words", Structure: model.Structure{HasLinks: true}}
	res = r.Resolve(context.Background(), plain, nil)
	assert.InDelta(t, structuralPerSignal, factorByName(t, res, FactorStructural).Score, 1e-9)
}

func TestResolver_FactorWeights(t *testing.T) {
	r := NewResolver(WithFactorWeights(FactorWeights{Contextual: 1}))

	res := r.Resolve(context.Background(), model.ScoredItem{Path: "roadmap.md", Content: "unique words only"}, nil)
	assert.InDelta(t, 0.25, res.Score, 1e-9)

	// all-zero weights are ignored
	r = NewResolver(WithFactorWeights(FactorWeights{}))
	assert.Equal(t, EqualFactorWeights, r.weights)
}

func TestResolver_CustomKeywords(t *testing.T) {
	r := NewResolver(WithStrategicKeywords([]string{"postmortem"}))

	res := r.Resolve(context.Background(), model.ScoredItem{Path: "2026/Postmortem-outage.md"}, nil)
	assert.InDelta(t, 0.25, factorByName(t, res, FactorContextual).Score, 1e-9)
}
