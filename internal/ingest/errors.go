package ingest

import (
	"errors"
	"fmt"

	"github.com/ppiankov/consolidator/internal/model"
)

// ErrCancelled marks chunks that were never dispatched because the caller cancelled
var ErrCancelled = errors.New("ingestion cancelled")

// DedupLookupError is a failed existence check. The gate fails closed on it:
// the chunk is skipped rather than risk a duplicate insert.
type DedupLookupError struct {
	Key model.DedupKey
	Err error
}

func (e *DedupLookupError) Error() string {
	return fmt.Sprintf("dedup lookup for %s failed: %v", e.Key, e.Err)
}

func (e *DedupLookupError) Unwrap() error {
	return e.Err
}

// IngestionWriteError is a per-chunk failure to embed or write. It is
// recorded in the report, never returned from Ingest.
type IngestionWriteError struct {
	Key model.DedupKey
	Op  string // embed, upsert, set_payload, ensure_collection
	Err error
}

func (e *IngestionWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *IngestionWriteError) Unwrap() error {
	return e.Err
}
