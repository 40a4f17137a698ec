package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/vectorstore"
)

func payload(content string, updated time.Time, categories ...string) model.Payload {
	idx := 0
	return model.Payload{
		DocumentID:  "doc",
		ChunkIndex:  &idx,
		Content:     content,
		ContentHash: model.ContentHash(content),
		Categories:  categories,
		UpdatedAt:   updated,
	}
}

func TestDecide(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &vectorstore.Point{ID: "p1", Payload: payload("same", t0, "alpha")}
	incoming := payload("same", t0.Add(time.Hour), "beta")
	changed := payload("different", t0.Add(time.Hour), "beta")

	tests := []struct {
		name     string
		existing *vectorstore.Point
		incoming model.Payload
		strategy model.MergeStrategy
		want     Decision
		reuse    bool
	}{
		{"empty slot inserts", nil, incoming, model.MergeSkip, DecisionInsert, false},
		{"empty slot inserts under preserve", nil, incoming, model.MergePreserve, DecisionInsert, false},
		{"skip", existing, incoming, model.MergeSkip, DecisionSkip, false},
		{"preserve", existing, incoming, model.MergePreserve, DecisionPreserve, false},
		{"update same content", existing, incoming, model.MergeUpdate, DecisionUpdate, true},
		{"update changed content", existing, changed, model.MergeUpdate, DecisionUpdate, false},
		{"merge same content", existing, incoming, model.MergeMerge, DecisionUpdate, true},
		{"merge changed content", existing, changed, model.MergeMerge, DecisionUpdate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decide(tt.existing, tt.incoming, tt.strategy)
			assert.Equal(t, tt.want, v.Decision)
			assert.Equal(t, tt.reuse, v.ReuseVector)
		})
	}
}

func TestMergePayload_NewerWins(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := payload("old text", t0, "alpha")
	older.AnalysisType = "decision"
	older.Metadata = map[string]string{"a": "1", "b": "old"}
	newer := payload("new text", t0.Add(time.Hour), "beta")
	newer.Metadata = map[string]string{"b": "new"}

	merged := MergePayload(older, newer)
	assert.Equal(t, "new text", merged.Content)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, merged.Categories)
	assert.Equal(t, "decision", merged.AnalysisType)
	assert.Equal(t, map[string]string{"a": "1", "b": "new"}, merged.Metadata)

	// Argument order does not matter for which content wins
	reversed := MergePayload(newer, older)
	assert.Equal(t, "new text", reversed.Content)
}

func TestHistory_Ring(t *testing.T) {
	h := NewHistory(3)
	assert.Empty(t, h.Recent())

	for i := 0; i < 5; i++ {
		h.Add(model.IngestionReport{DocumentID: string(rune('a' + i))})
	}
	recent := h.Recent()
	assert.Equal(t, []string{"c", "d", "e"}, []string{recent[0].DocumentID, recent[1].DocumentID, recent[2].DocumentID})
}

// misplacedStore answers every lookup with a point from another slot
type misplacedStore struct {
	*vectorstore.MemoryStore
}

func (s *misplacedStore) Lookup(context.Context, model.DedupKey) (*vectorstore.Point, error) {
	other := model.PayloadFor(model.Document{ID: "doc"}, model.ChunkKey("doc", 9), "elsewhere", nil)
	return &vectorstore.Point{ID: "p9", Payload: other}, nil
}

func TestGateCheck_FoundSlot(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	key := model.ChunkKey("doc", 0)
	stored := model.PayloadFor(model.Document{ID: "doc"}, key, "text", nil)
	require.NoError(t, store.Upsert(context.Background(), vectorstore.Point{ID: vectorstore.PointID(key), Vector: []float32{1}, Payload: stored}))

	v, err := NewGate(store, quiet).Check(context.Background(), key, stored, model.MergeSkip)
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, v.Decision)
	require.NotNil(t, v.Existing)
	assert.True(t, v.Existing.Payload.Key().Equal(key))
}

func TestGateCheck_MisplacedPointFailsClosed(t *testing.T) {
	gate := NewGate(&misplacedStore{MemoryStore: vectorstore.NewMemoryStore()}, quiet)
	key := model.ChunkKey("doc", 0)
	incoming := model.PayloadFor(model.Document{ID: "doc"}, key, "text", nil)

	v, err := gate.Check(context.Background(), key, incoming, model.MergeUpdate)
	assert.Equal(t, DecisionSkip, v.Decision)
	var lookupErr *DedupLookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.True(t, lookupErr.Key.Equal(key))
	assert.Contains(t, err.Error(), "doc#9")
}

func TestMergePayload_KeepsSlot(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	merged := MergePayload(payload("a", t0, "x"), payload("b", t0.Add(time.Minute), "y"))
	assert.True(t, merged.Key().Equal(model.ChunkKey("doc", 0)))
	assert.False(t, merged.Key().Equal(model.DocumentKey("doc")))
}
