package qdrant

import (
	"context"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/consolidator/internal/model"
)

func TestPayloadValues_ChunkIndexStaysInteger(t *testing.T) {
	key := model.ChunkKey("doc-7", 3)
	payload := model.PayloadFor(model.Document{
		ID:           "doc-7",
		Categories:   []string{"insight", "roadmap"},
		AnalysisType: "retrospective",
		UpdatedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Metadata:     map[string]string{"author": "ops"},
		Confidence:   &model.ConfidenceResult{FinalScore: 0.82, Label: model.LabelMedium},
	}, key, "chunk body", nil)

	values, err := toValueMap(payload)
	require.NoError(t, err)

	idx, ok := values[fieldChunkIndex].GetKind().(*pb.Value_IntegerValue)
	require.True(t, ok, "chunkIndex must be stored as an integer")
	assert.Equal(t, int64(3), idx.IntegerValue)
	assert.Equal(t, "doc-7", values[fieldDocumentID].GetStringValue())

	back, err := fromValueMap(values)
	require.NoError(t, err)
	assert.Equal(t, payload.DocumentID, back.DocumentID)
	assert.Equal(t, 3, back.Key().Index())
	assert.Equal(t, payload.Categories, back.Categories)
	assert.Equal(t, payload.ContentHash, back.ContentHash)
	assert.Equal(t, "ops", back.Metadata["author"])
	assert.InDelta(t, 0.82, back.Confidence, 1e-9)
	assert.True(t, payload.UpdatedAt.Equal(back.UpdatedAt))
}

func TestPayloadValues_DocumentKeyOmitsChunkIndex(t *testing.T) {
	payload := model.PayloadFor(model.Document{ID: "whole"}, model.DocumentKey("whole"), "body", nil)

	values, err := toValueMap(payload)
	require.NoError(t, err)
	_, present := values[fieldChunkIndex]
	assert.False(t, present)
}

func TestSlotFilter(t *testing.T) {
	f := slotFilter(model.ChunkKey("doc", 4))
	require.Len(t, f.GetMust(), 2)
	assert.Equal(t, fieldDocumentID, f.GetMust()[0].GetField().GetKey())
	assert.Equal(t, int64(4), f.GetMust()[1].GetField().GetMatch().GetInteger())

	f = slotFilter(model.DocumentKey("doc"))
	require.Len(t, f.GetMust(), 2)
	assert.Equal(t, fieldChunkIndex, f.GetMust()[1].GetIsEmpty().GetKey())
}

// errPoints answers every read with the same error
type errPoints struct {
	pb.PointsClient
	err error
}

func (p errPoints) Scroll(context.Context, *pb.ScrollPoints, ...grpc.CallOption) (*pb.ScrollResponse, error) {
	return nil, p.err
}

func (p errPoints) Search(context.Context, *pb.SearchPoints, ...grpc.CallOption) (*pb.SearchResponse, error) {
	return nil, p.err
}

func (p errPoints) Count(context.Context, *pb.CountPoints, ...grpc.CallOption) (*pb.CountResponse, error) {
	return nil, p.err
}

func TestReads_MissingCollectionIsEmpty(t *testing.T) {
	s := &Store{
		points:     errPoints{err: status.Error(codes.NotFound, "Collection `knowledge_consolidator` doesn't exist!")},
		collection: "knowledge_consolidator",
	}
	ctx := context.Background()

	pt, err := s.Lookup(ctx, model.ChunkKey("a.md", 0))
	require.NoError(t, err)
	assert.Nil(t, pt)

	matches, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Scroll(ctx, func(model.Payload) error {
		t.Fatal("no payloads expected")
		return nil
	}))
}

func TestReads_OtherErrorsSurface(t *testing.T) {
	s := &Store{
		points:     errPoints{err: status.Error(codes.Unavailable, "connection refused")},
		collection: "knowledge_consolidator",
	}

	_, err := s.Lookup(context.Background(), model.ChunkKey("a.md", 0))
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
