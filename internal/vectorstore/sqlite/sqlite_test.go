package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/vectorstore"
)

func point(key model.DedupKey, vec []float32, categories ...string) vectorstore.Point {
	payload := model.PayloadFor(model.Document{
		ID:           key.DocumentID,
		Categories:   categories,
		AnalysisType: "decision_record",
		UpdatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, key, "text for "+key.String(), nil)
	return vectorstore.Point{ID: vectorstore.PointID(key), Vector: vec, Payload: payload}
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ChunkAndDocumentSlots(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.Upsert(ctx, point(model.ChunkKey("doc", 0), []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, point(model.DocumentKey("other"), []float32{0, 1})))

	got, err := s.Lookup(ctx, model.ChunkKey("doc", 0))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Payload.Key().Index())

	got, err = s.Lookup(ctx, model.ChunkKey("doc", 1))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Lookup(ctx, model.DocumentKey("other"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Payload.Key().Chunked())

	// A whole-document key does not match chunk slots of the same document
	got, err = s.Lookup(ctx, model.DocumentKey("doc"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_UpsertIsIdempotentPerSlot(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	p := point(model.ChunkKey("doc", 2), []float32{1, 1})

	require.NoError(t, s.Upsert(ctx, p))
	require.NoError(t, s.Upsert(ctx, p))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.EnsureCollection(ctx, 2))

	err := s.Upsert(ctx, point(model.ChunkKey("doc", 0), []float32{1, 2, 3}))
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestStore_SetPayloadAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	a := point(model.ChunkKey("a", 0), []float32{1, 0}, "insight")
	b := point(model.ChunkKey("b", 0), []float32{0, 1})
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))

	updated := a.Payload
	updated.Categories = []string{"insight", "strategy"}
	require.NoError(t, s.SetPayload(ctx, a.ID, updated))
	assert.Error(t, s.SetPayload(ctx, "nope", updated))

	matches, err := s.Search(ctx, []float32{1, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Payload.DocumentID)
	assert.Equal(t, []string{"insight", "strategy"}, matches[0].Payload.Categories)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "vectors.db")

	s, err := Open(ctx, path, "test")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, point(model.ChunkKey("doc", 0), []float32{1, 0, 0}, "insight")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, "test")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	stats, err := vectorstore.Collect(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Points)
	assert.Equal(t, 1, stats.AnalysisTypes["decision_record"])

	// Dimension survives the reopen
	err = s.Upsert(ctx, point(model.ChunkKey("doc", 1), []float32{1, 0}))
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestFloat32Bytes(t *testing.T) {
	vec := []float32{1.5, -2.25, 0}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
}
