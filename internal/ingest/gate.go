package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/vectorstore"
)

// Decision is the gate's verdict for one chunk
type Decision string

const (
	DecisionInsert   Decision = "insert"
	DecisionSkip     Decision = "skip"
	DecisionPreserve Decision = "preserve-noop"
	DecisionUpdate   Decision = "update"
)

// Verdict tells the coordinator what to write for one dedup slot
type Verdict struct {
	Decision Decision
	Existing *vectorstore.Point // Set when the slot is occupied
	Payload  model.Payload      // Payload to write for insert and update

	// ReuseVector is set for updates whose content hash matches the stored
	// point: only the payload needs rewriting, no embedding call
	ReuseVector bool
}

// Gate is the chunk deduplication gate. Every (document, chunk index) slot
// is checked on its own; nothing is inferred from the presence of an index.
type Gate struct {
	store  vectorstore.Store
	logger *slog.Logger
}

// NewGate creates a gate over store
func NewGate(store vectorstore.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger}
}

// Check looks up key and decides what to do with the incoming payload.
// A failed lookup fails closed: the verdict is skip and the returned error
// is a *DedupLookupError for the caller to record. A point found for a
// different slot counts as a failed lookup.
func (g *Gate) Check(ctx context.Context, key model.DedupKey, incoming model.Payload, strategy model.MergeStrategy) (Verdict, error) {
	existing, err := g.store.Lookup(ctx, key)
	if err == nil && existing != nil && !existing.Payload.Key().Equal(key) {
		err = fmt.Errorf("store returned point %s for slot %s", existing.ID, existing.Payload.Key())
	}
	if err != nil {
		g.logger.Warn("dedup lookup failed, skipping chunk", "key", key.String(), "error", err)
		return Verdict{Decision: DecisionSkip}, &DedupLookupError{Key: key, Err: err}
	}
	return Decide(existing, incoming, strategy), nil
}

// Decide is the pure decision table behind Check
func Decide(existing *vectorstore.Point, incoming model.Payload, strategy model.MergeStrategy) Verdict {
	if existing == nil {
		return Verdict{Decision: DecisionInsert, Payload: incoming}
	}

	switch strategy {
	case model.MergePreserve:
		return Verdict{Decision: DecisionPreserve, Existing: existing}

	case model.MergeUpdate:
		return Verdict{
			Decision:    DecisionUpdate,
			Existing:    existing,
			Payload:     incoming,
			ReuseVector: existing.Payload.ContentHash == incoming.ContentHash,
		}

	case model.MergeMerge:
		merged := MergePayload(existing.Payload, incoming)
		return Verdict{
			Decision:    DecisionUpdate,
			Existing:    existing,
			Payload:     merged,
			ReuseVector: existing.Payload.ContentHash == merged.ContentHash,
		}

	default:
		return Verdict{Decision: DecisionSkip, Existing: existing}
	}
}
