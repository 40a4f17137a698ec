package model

import (
	"fmt"
	"time"
)

// Action is the per-chunk outcome of ingestion
type Action string

const (
	ActionInserted  Action = "inserted"
	ActionSkipped   Action = "skipped"
	ActionUpdated   Action = "updated"
	ActionPreserved Action = "preserved"
	ActionFailed    Action = "failed"
)

// ChunkOutcome records what happened to a single chunk
type ChunkOutcome struct {
	Key      DedupKey `json:"key"`
	Action   Action   `json:"action"`
	Reason   string   `json:"reason,omitempty"`
	Degraded bool     `json:"degraded,omitempty"` // Decision taken on a safe default after an I/O failure
}

// IngestionReport summarizes one ingestDocument call.
// Outcomes are ordered by chunk index, not completion order.
type IngestionReport struct {
	DocumentID string         `json:"document_id"`
	Strategy   MergeStrategy  `json:"strategy"`
	Inserted   int            `json:"inserted"`
	Skipped    int            `json:"skipped"`
	Updated    int            `json:"updated"`
	Preserved  int            `json:"preserved"`
	Failed     int            `json:"failed"`
	Failures   map[int]string `json:"failures,omitempty"` // Chunk index (-1 for whole document) -> reason
	Degraded   []string       `json:"degraded,omitempty"`
	Outcomes   []ChunkOutcome `json:"outcomes"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}

// Record tallies an outcome into the report
func (r *IngestionReport) Record(o ChunkOutcome) {
	switch o.Action {
	case ActionInserted:
		r.Inserted++
	case ActionSkipped:
		r.Skipped++
	case ActionUpdated:
		r.Updated++
	case ActionPreserved:
		r.Preserved++
	case ActionFailed:
		r.Failed++
		if r.Failures == nil {
			r.Failures = make(map[int]string)
		}
		r.Failures[o.Key.Index()] = o.Reason
	}
	if o.Degraded {
		r.Degraded = append(r.Degraded, fmt.Sprintf("%s: %s", o.Key, o.Reason))
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Total returns the number of chunks accounted for
func (r IngestionReport) Total() int {
	return r.Inserted + r.Skipped + r.Updated + r.Preserved + r.Failed
}

// Summary renders a one-line human summary
func (r IngestionReport) Summary() string {
	return fmt.Sprintf("%s: %d inserted, %d skipped, %d updated, %d preserved, %d failed (%s)",
		r.DocumentID, r.Inserted, r.Skipped, r.Updated, r.Preserved, r.Failed, r.Strategy)
}
