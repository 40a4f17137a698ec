// Package ingest writes document chunks into the vector store under
// at-most-once insertion and per-call merge strategies.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/observability"
	"github.com/ppiankov/consolidator/internal/vectorstore"
	"github.com/ppiankov/consolidator/internal/worker"
)

const defaultWorkers = 4

// Embedder produces the vector for a chunk's text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is one document ingestion
type Request struct {
	Document model.Document      `json:"document"`
	Chunks   []model.ChunkRecord `json:"chunks,omitempty"`
	Strategy model.MergeStrategy `json:"strategy,omitempty"`
}

// Coordinator orchestrates dedup checks, embedding and writes for the
// chunks of one document at a time
type Coordinator struct {
	store    vectorstore.Store
	embedder Embedder
	gate     *Gate
	workers  int
	history  *History
	metrics  *observability.Metrics
	logger   *slog.Logger

	collectionMu    sync.Mutex
	collectionReady bool
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithWorkers bounds in-flight chunks per document
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithHistory records every report in h
func WithHistory(h *History) Option {
	return func(c *Coordinator) {
		c.history = h
	}
}

// WithMetrics records chunk outcomes
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a coordinator writing to store
func NewCoordinator(store vectorstore.Store, embedder Embedder, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		embedder: embedder,
		workers:  defaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = NewGate(store, c.logger)
	return c
}

// History returns the report ring, nil when none was configured
func (c *Coordinator) History() *History {
	return c.history
}

// Ingest writes the chunks of doc. With no chunks the document content is
// ingested as a single unit under a whole-document key.
//
// Per-chunk failures are recorded in the report; the error return is only
// for requests that cannot be processed at all. After ctx is cancelled no
// further chunks are dispatched, and those are reported failed with
// ErrCancelled. Chunks already dispatched complete.
func (c *Coordinator) Ingest(ctx context.Context, doc model.Document, chunks []model.ChunkRecord, strategy model.MergeStrategy) (model.IngestionReport, error) {
	strategy, err := model.ParseMergeStrategy(string(strategy))
	if err != nil {
		return model.IngestionReport{}, err
	}
	units, err := prepare(doc, chunks)
	if err != nil {
		return model.IngestionReport{}, err
	}

	ctx, span := observability.StartIngestSpan(ctx, doc.ID, strategy, len(units))
	defer span.End()

	c.prepareCollection(ctx, units)

	report := model.IngestionReport{
		DocumentID: doc.ID,
		Strategy:   strategy,
		StartedAt:  time.Now().UTC(),
		Outcomes:   make([]model.ChunkOutcome, 0, len(units)),
	}

	jobs := make([]worker.Job, len(units))
	for i, u := range units {
		jobs[i] = &chunkJob{c: c, doc: doc, unit: u, strategy: strategy}
	}
	results, dispatched := worker.RunOrdered(ctx, c.workers, jobs)

	for i, res := range results {
		var outcome model.ChunkOutcome
		if res == nil {
			outcome = model.ChunkOutcome{Key: units[i].key, Action: model.ActionFailed, Reason: ErrCancelled.Error()}
		} else {
			outcome = res.(*chunkResult).outcome
		}
		report.Record(outcome)
	}
	report.Duration = time.Since(report.StartedAt)

	if dispatched < len(units) {
		c.logger.Warn("ingestion cancelled",
			"document", doc.ID,
			"dispatched", dispatched,
			"total", len(units),
		)
	}
	c.logger.Info("document ingested",
		"document", doc.ID,
		"strategy", string(strategy),
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"updated", report.Updated,
		"preserved", report.Preserved,
		"failed", report.Failed,
		"duration", report.Duration,
	)

	observability.RecordIngestionReport(span, report)
	c.metrics.ObserveIngestion(report)
	if c.history != nil {
		c.history.Add(report)
	}
	return report, nil
}

// unit is one dedup slot to process
type unit struct {
	key  model.DedupKey
	text string
	meta map[string]string
}

// prepare validates the request and returns the units in chunk index order
func prepare(doc model.Document, chunks []model.ChunkRecord) ([]unit, error) {
	if doc.ID == "" {
		return nil, errors.New("document id is required")
	}

	if len(chunks) == 0 {
		if doc.Content == "" {
			return nil, fmt.Errorf("document %s has no chunks and no content", doc.ID)
		}
		return []unit{{key: model.DocumentKey(doc.ID), text: doc.Content}}, nil
	}

	sorted := append([]model.ChunkRecord(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	units := make([]unit, 0, len(sorted))
	for i, ch := range sorted {
		if ch.Index < 0 {
			return nil, fmt.Errorf("document %s: negative chunk index %d", doc.ID, ch.Index)
		}
		if i > 0 && sorted[i-1].Index == ch.Index {
			return nil, fmt.Errorf("document %s: duplicate chunk index %d", doc.ID, ch.Index)
		}
		if ch.DocumentID != "" && ch.DocumentID != doc.ID {
			return nil, fmt.Errorf("chunk %d belongs to document %s, not %s", ch.Index, ch.DocumentID, doc.ID)
		}
		units = append(units, unit{key: model.ChunkKey(doc.ID, ch.Index), text: ch.Text, meta: ch.Metadata})
	}
	return units, nil
}

type chunkJob struct {
	c        *Coordinator
	doc      model.Document
	unit     unit
	strategy model.MergeStrategy
}

type chunkResult struct {
	outcome model.ChunkOutcome
}

func (r *chunkResult) GetError() error { return nil }

func (j *chunkJob) Execute(ctx context.Context) worker.Result {
	// Queued but not started when the caller gave up
	if ctx.Err() != nil {
		return &chunkResult{outcome: model.ChunkOutcome{
			Key:    j.unit.key,
			Action: model.ActionFailed,
			Reason: ErrCancelled.Error(),
		}}
	}
	// Once started, a chunk runs to completion
	return &chunkResult{outcome: j.c.process(context.WithoutCancel(ctx), j.doc, j.unit, j.strategy)}
}

func (c *Coordinator) process(ctx context.Context, doc model.Document, u unit, strategy model.MergeStrategy) model.ChunkOutcome {
	ctx, span := observability.StartChunkSpan(ctx, u.key)
	defer span.End()

	incoming := model.PayloadFor(doc, u.key, u.text, u.meta)

	verdict, err := c.gate.Check(ctx, u.key, incoming, strategy)
	if err != nil {
		observability.RecordError(span, err)
		return model.ChunkOutcome{Key: u.key, Action: model.ActionSkipped, Reason: err.Error(), Degraded: true}
	}

	var outcome model.ChunkOutcome
	switch verdict.Decision {
	case DecisionSkip:
		return model.ChunkOutcome{Key: u.key, Action: model.ActionSkipped, Reason: "already stored"}

	case DecisionPreserve:
		return model.ChunkOutcome{Key: u.key, Action: model.ActionPreserved, Reason: "duplicate seen, existing kept"}

	case DecisionUpdate:
		if verdict.ReuseVector {
			err = c.setPayload(ctx, u.key, verdict.Existing.ID, verdict.Payload)
			outcome = model.ChunkOutcome{Key: u.key, Action: model.ActionUpdated, Reason: "payload only, content unchanged"}
		} else {
			err = c.write(ctx, u.key, verdict.Existing.ID, verdict.Payload)
			outcome = model.ChunkOutcome{Key: u.key, Action: model.ActionUpdated, Reason: "content changed, re-embedded"}
		}

	default:
		err = c.write(ctx, u.key, vectorstore.PointID(u.key), verdict.Payload)
		outcome = model.ChunkOutcome{Key: u.key, Action: model.ActionInserted}
	}

	if err != nil {
		observability.RecordError(span, err)
		c.logger.Warn("chunk write failed", "key", u.key.String(), "error", err)
		return model.ChunkOutcome{Key: u.key, Action: model.ActionFailed, Reason: err.Error()}
	}
	return outcome
}

// write embeds the payload content and upserts it under id
func (c *Coordinator) write(ctx context.Context, key model.DedupKey, id string, payload model.Payload) error {
	if c.embedder == nil {
		return &IngestionWriteError{Key: key, Op: "embed", Err: errors.New("no embedding provider configured")}
	}
	vec, err := c.embedder.Embed(ctx, payload.Content)
	if err != nil {
		return &IngestionWriteError{Key: key, Op: "embed", Err: err}
	}
	if err := c.ensureCollection(ctx, len(vec)); err != nil {
		return &IngestionWriteError{Key: key, Op: "ensure_collection", Err: err}
	}
	if err := c.store.Upsert(ctx, vectorstore.Point{ID: id, Vector: vec, Payload: payload}); err != nil {
		return &IngestionWriteError{Key: key, Op: "upsert", Err: err}
	}
	return nil
}

func (c *Coordinator) setPayload(ctx context.Context, key model.DedupKey, id string, payload model.Payload) error {
	if err := c.store.SetPayload(ctx, id, payload); err != nil {
		return &IngestionWriteError{Key: key, Op: "set_payload", Err: err}
	}
	return nil
}

// sized is implemented by embedders that know their vector size up front
type sized interface {
	Dimensions() int
}

// prepareCollection creates the collection before the first dedup lookup, so
// a fresh backend answers lookups with "no match" instead of a missing
// collection error. The vector size comes from the embedder, or from
// embedding the first unit when it is unknown. Failures are only logged:
// writes retry the creation.
func (c *Coordinator) prepareCollection(ctx context.Context, units []unit) {
	if c.embedder == nil || len(units) == 0 {
		return
	}
	c.collectionMu.Lock()
	ready := c.collectionReady
	c.collectionMu.Unlock()
	if ready {
		return
	}

	dims := 0
	if s, ok := c.embedder.(sized); ok {
		dims = s.Dimensions()
	}
	if dims <= 0 {
		vec, err := c.embedder.Embed(ctx, units[0].text)
		if err != nil {
			c.logger.Warn("could not size collection", "error", err)
			return
		}
		dims = len(vec)
	}
	if err := c.ensureCollection(ctx, dims); err != nil {
		c.logger.Warn("could not create collection", "dimensions", dims, "error", err)
	}
}

// ensureCollection creates the collection once
func (c *Coordinator) ensureCollection(ctx context.Context, dims int) error {
	c.collectionMu.Lock()
	defer c.collectionMu.Unlock()

	if c.collectionReady {
		return nil
	}
	if err := c.store.EnsureCollection(ctx, dims); err != nil {
		return err
	}
	c.collectionReady = true
	return nil
}
