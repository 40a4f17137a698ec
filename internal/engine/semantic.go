package engine

import (
	"context"

	"github.com/ppiankov/consolidator/internal/vectorstore"
)

type textEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// semanticIndex finds stored neighbors of arbitrary text by embedding it
// and searching the collection
type semanticIndex struct {
	embedder textEmbedder
	store    vectorstore.Store
}

func (s *semanticIndex) Neighbors(ctx context.Context, text string, k int) ([]float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(matches))
	for i, m := range matches {
		scores[i] = m.Score
	}
	return scores, nil
}
