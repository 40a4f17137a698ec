package model

import (
	"sort"
	"strings"
	"time"
)

// ScoreSource tags the scale a raw score was detected (or declared) to be on
type ScoreSource string

const (
	SourceUnknown    ScoreSource = ""           // No hint supplied, detect from value
	SourceNormalized ScoreSource = "normalized" // Already in [0,1]
	SourcePercentage ScoreSource = "percentage" // 0-100 scale
	SourceSimilarity ScoreSource = "similarity" // Raw similarity-search score (provider scale)
)

// Structure carries the structural signals reported by the discovery collaborator
type Structure struct {
	HasHeadings bool `json:"has_headings" yaml:"has_headings"`
	HasLists    bool `json:"has_lists" yaml:"has_lists"`
	HasLinks    bool `json:"has_links" yaml:"has_links"`
}

// ScoredItem is a knowledge item as handed over by discovery. Read-only to the engine.
type ScoredItem struct {
	ID          string      `json:"id" yaml:"id"`
	RawScore    float64     `json:"raw_score" yaml:"raw_score"`
	ScoreSource ScoreSource `json:"score_source,omitempty" yaml:"score_source,omitempty"`
	Categories  []string    `json:"categories,omitempty" yaml:"categories,omitempty"`
	Content     string      `json:"content,omitempty" yaml:"content,omitempty"`
	Path        string      `json:"path,omitempty" yaml:"path,omitempty"` // Filename or path, used for contextual relevance
	Structure   Structure   `json:"structure" yaml:"structure"`
	CreatedAt   time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ModifiedAt  time.Time   `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

// UniqueCategories returns the item's categories trimmed, case-folded for
// comparison and deduplicated. Order of first occurrence is kept.
func (i ScoredItem) UniqueCategories() []string {
	return NormalizeCategories(i.Categories)
}

// NormalizeCategories trims and deduplicates a category list (case-insensitive).
// Empty entries are dropped.
func NormalizeCategories(categories []string) []string {
	if len(categories) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// UnionCategories merges two category sets, deduplicated and sorted for a
// stable payload representation
func UnionCategories(a, b []string) []string {
	merged := NormalizeCategories(append(append([]string{}, a...), b...))
	sort.Slice(merged, func(i, j int) bool {
		return strings.ToLower(merged[i]) < strings.ToLower(merged[j])
	})
	return merged
}
