package vectorstore

import (
	"context"
	"fmt"

	"github.com/ppiankov/consolidator/internal/model"
)

// CollectionStats summarizes what the collection holds
type CollectionStats struct {
	Backend           string         `json:"backend"`
	Points            int            `json:"points"`
	Documents         int            `json:"documents"`
	Chunked           int            `json:"chunked"` // Points addressing a chunk slot
	Categories        map[string]int `json:"categories,omitempty"`
	AnalysisTypes     map[string]int `json:"analysis_types,omitempty"`
	AverageConfidence float64        `json:"average_confidence"`
}

// Collect walks the store and aggregates its payloads
func Collect(ctx context.Context, store Store) (CollectionStats, error) {
	stats := CollectionStats{
		Backend:       store.Backend(),
		Categories:    make(map[string]int),
		AnalysisTypes: make(map[string]int),
	}
	docs := make(map[string]struct{})
	var confidenceSum float64

	err := store.Scroll(ctx, func(p model.Payload) error {
		stats.Points++
		docs[p.DocumentID] = struct{}{}
		if p.ChunkIndex != nil {
			stats.Chunked++
		}
		for _, c := range p.Categories {
			stats.Categories[c]++
		}
		if p.AnalysisType != "" {
			stats.AnalysisTypes[p.AnalysisType]++
		}
		confidenceSum += p.Confidence
		return nil
	})
	if err != nil {
		return CollectionStats{}, fmt.Errorf("scan %s collection: %w", store.Backend(), err)
	}

	stats.Documents = len(docs)
	if stats.Points > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Points)
	}
	return stats, nil
}
