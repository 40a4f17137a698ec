// Package qdrant is the Qdrant vector store backend, talking gRPC to the
// points and collections services.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/consolidator/internal/model"
	"github.com/ppiankov/consolidator/internal/vectorstore"
)

// Payload fields used for slot lookup
const (
	fieldDocumentID = "documentId"
	fieldChunkIndex = "chunkIndex"
)

const scrollPageSize = 256

// Store implements vectorstore.Store using Qdrant
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a Qdrant-backed store. The connection is established lazily.
func New(host string, port int, collection string) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return NewWithConn(conn, collection), nil
}

// NewWithConn builds a store on an existing connection
func NewWithConn(conn *grpc.ClientConn, collection string) *Store {
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
}

func (s *Store) Backend() string { return "qdrant" }

// EnsureCollection creates the collection with cosine distance and indexes
// the slot fields when it does not exist yet
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(dims),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	for field, kind := range map[string]pb.FieldType{
		fieldDocumentID: pb.FieldType_FieldTypeKeyword,
		fieldChunkIndex: pb.FieldType_FieldTypeInteger,
	} {
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: s.collection,
			Wait:           pb.PtrOf(true),
			FieldName:      field,
			FieldType:      pb.PtrOf(kind),
		})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", s.collection, field, err)
		}
	}
	return nil
}

// Lookup scrolls with a (documentId, chunkIndex) filter. Whole-document
// keys require chunkIndex to be absent.
func (s *Store) Lookup(ctx context.Context, key model.DedupKey) (*vectorstore.Point, error) {
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Filter:         slotFilter(key),
		Limit:          pb.PtrOf(uint32(1)),
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		if missingCollection(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	if len(resp.GetResult()) == 0 {
		return nil, nil
	}

	pt := resp.GetResult()[0]
	payload, err := fromValueMap(pt.GetPayload())
	if err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", key, err)
	}
	return &vectorstore.Point{ID: pt.GetId().GetUuid(), Payload: payload}, nil
}

func slotFilter(key model.DedupKey) *pb.Filter {
	must := []*pb.Condition{pb.NewMatchKeyword(fieldDocumentID, key.DocumentID)}
	if key.Chunked() {
		must = append(must, pb.NewMatchInt(fieldChunkIndex, int64(key.Index())))
	} else {
		must = append(must, pb.NewIsEmpty(fieldChunkIndex))
	}
	return &pb.Filter{Must: must}
}

func (s *Store) Upsert(ctx context.Context, p vectorstore.Point) error {
	payload, err := toValueMap(p.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           pb.PtrOf(true),
		Points: []*pb.PointStruct{{
			Id:      pb.NewIDUUID(p.ID),
			Vectors: pb.NewVectorsDense(p.Vector),
			Payload: payload,
		}},
	})
	if err != nil {
		if strings.Contains(err.Error(), "dimension") {
			return fmt.Errorf("%w: %v", vectorstore.ErrDimensionMismatch, err)
		}
		return fmt.Errorf("upsert %s: %w", p.ID, err)
	}
	return nil
}

// SetPayload overwrites the stored payload, leaving the vector untouched
func (s *Store) SetPayload(ctx context.Context, id string, payload model.Payload) error {
	values, err := toValueMap(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.points.OverwritePayload(ctx, &pb.SetPayloadPoints{
		CollectionName: s.collection,
		Wait:           pb.PtrOf(true),
		Payload:        values,
		PointsSelector: pb.NewPointsSelector(pb.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("set payload %s: %w", id, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Match, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		if missingCollection(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]vectorstore.Match, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		payload, err := fromValueMap(pt.GetPayload())
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		matches = append(matches, vectorstore.Match{
			ID:      pt.GetId().GetUuid(),
			Score:   float64(pt.GetScore()),
			Payload: payload,
		})
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          pb.PtrOf(true),
	})
	if err != nil {
		if missingCollection(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Scroll pages through the collection
func (s *Store) Scroll(ctx context.Context, fn func(model.Payload) error) error {
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          pb.PtrOf(uint32(scrollPageSize)),
			WithPayload:    pb.NewWithPayload(true),
		})
		if err != nil {
			if missingCollection(err) {
				return nil
			}
			return fmt.Errorf("scroll: %w", err)
		}
		for _, pt := range resp.GetResult() {
			payload, err := fromValueMap(pt.GetPayload())
			if err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			if err := fn(payload); err != nil {
				return err
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

// missingCollection reports a read against a collection that was never
// created. Reads treat it as an empty collection.
func missingCollection(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Close closes the gRPC connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// toValueMap converts a payload to Qdrant values through its JSON form,
// keeping integral numbers as integers so chunkIndex matches integer filters
func toValueMap(p model.Payload) (map[string]*pb.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return pb.TryValueMap(normalizeNumbers(raw).(map[string]any))
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, inner := range v {
			v[k] = normalizeNumbers(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = normalizeNumbers(inner)
		}
		return v
	default:
		return v
	}
}

func fromValueMap(values map[string]*pb.Value) (model.Payload, error) {
	raw := make(map[string]any, len(values))
	for k, v := range values {
		raw[k] = fromValue(v)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return model.Payload{}, err
	}
	var p model.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Payload{}, err
	}
	return p, nil
}

func fromValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for name, inner := range k.StructValue.GetFields() {
			out[name] = fromValue(inner)
		}
		return out
	case *pb.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, inner := range k.ListValue.GetValues() {
			out = append(out, fromValue(inner))
		}
		return out
	default:
		return nil
	}
}

var _ vectorstore.Store = (*Store)(nil)
