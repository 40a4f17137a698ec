package ingest

import "github.com/ppiankov/consolidator/internal/model"

// MergePayload combines a stored payload with an incoming one for the merge
// strategy: categories are unioned, metadata keys are unioned with the newer
// side winning conflicts, and content comes from whichever side is newer.
// Ties go to the incoming payload.
func MergePayload(existing, incoming model.Payload) model.Payload {
	newer, older := incoming, existing
	if existing.UpdatedAt.After(incoming.UpdatedAt) {
		newer, older = existing, incoming
	}

	merged := newer
	merged.Categories = model.UnionCategories(existing.Categories, incoming.Categories)

	if merged.AnalysisType == "" {
		merged.AnalysisType = older.AnalysisType
	}
	if merged.SourceFile == "" {
		merged.SourceFile = older.SourceFile
	}

	if len(existing.Metadata)+len(incoming.Metadata) > 0 {
		meta := make(map[string]string, len(existing.Metadata)+len(incoming.Metadata))
		for k, v := range older.Metadata {
			meta[k] = v
		}
		for k, v := range newer.Metadata {
			meta[k] = v
		}
		merged.Metadata = meta
	}
	return merged
}
