package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
)

func testPoint(doc string, index int, vec []float32, categories ...string) Point {
	key := model.ChunkKey(doc, index)
	payload := model.PayloadFor(model.Document{
		ID:         doc,
		Categories: categories,
		UpdatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, key, "chunk text", nil)
	return Point{ID: PointID(key), Vector: vec, Payload: payload}
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID(model.ChunkKey("doc-1", 3))
	b := PointID(model.ChunkKey("doc-1", 3))
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, PointID(model.ChunkKey("doc-1", 4)))
	assert.NotEqual(t, a, PointID(model.ChunkKey("doc-2", 3)))
	assert.NotEqual(t, PointID(model.DocumentKey("doc-1")), PointID(model.ChunkKey("doc-1", 0)))
	assert.Len(t, a, 36)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestMemoryStore_LookupUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Lookup(ctx, model.ChunkKey("doc", 0))
	require.NoError(t, err)
	assert.Nil(t, got)

	p := testPoint("doc", 0, []float32{1, 0, 0}, "insight")
	require.NoError(t, s.Upsert(ctx, p))

	got, err = s.Lookup(ctx, model.ChunkKey("doc", 0))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, []string{"insight"}, got.Payload.Categories)

	// Upserting the same slot replaces rather than adds
	require.NoError(t, s.Upsert(ctx, p))
	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, 3))

	err := s.Upsert(ctx, testPoint("doc", 0, []float32{1, 0}))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMemoryStore_SetPayloadKeepsVector(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := testPoint("doc", 1, []float32{0, 1})
	require.NoError(t, s.Upsert(ctx, p))

	updated := p.Payload
	updated.Categories = []string{"decision"}
	require.NoError(t, s.SetPayload(ctx, p.ID, updated))

	got, _ := s.Lookup(ctx, model.ChunkKey("doc", 1))
	assert.Equal(t, []string{"decision"}, got.Payload.Categories)
	assert.Equal(t, []float32{0, 1}, got.Vector)

	assert.Error(t, s.SetPayload(ctx, "missing", updated))
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, testPoint("a", 0, []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, testPoint("b", 0, []float32{0.9, 0.1})))
	require.NoError(t, s.Upsert(ctx, testPoint("c", 0, []float32{0, 1})))

	matches, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Payload.DocumentID)
	assert.Equal(t, "b", matches[1].Payload.DocumentID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, testPoint("a", 0, []float32{1, 0}, "insight")))
	require.NoError(t, s.Upsert(ctx, testPoint("a", 1, []float32{1, 0}, "insight", "decision")))
	require.NoError(t, s.Upsert(ctx, testPoint("b", 0, []float32{0, 1})))

	stats, err := Collect(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 3, stats.Points)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Chunked)
	assert.Equal(t, 2, stats.Categories["insight"])
	assert.Equal(t, 1, stats.Categories["decision"])
}
