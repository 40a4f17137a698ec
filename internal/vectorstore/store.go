// Package vectorstore defines the vector collection the ingestion path writes to
// and provides an in-memory backend plus a resilience wrapper.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/ppiankov/consolidator/internal/model"
)

// ErrDimensionMismatch is returned when a vector does not match the collection size
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Point is one stored vector with its payload
type Point struct {
	ID      string
	Vector  []float32 // May be nil when returned by Lookup
	Payload model.Payload
}

// Match is a similarity search hit. Score is cosine similarity.
type Match struct {
	ID      string
	Score   float64
	Payload model.Payload
}

// Store is a vector collection keyed by deterministic point IDs
type Store interface {
	// Backend returns the backend name
	Backend() string

	// EnsureCollection creates the collection with the given vector size if it is missing
	EnsureCollection(ctx context.Context, dims int) error

	// Lookup returns the point occupying key, or nil when the slot is empty
	Lookup(ctx context.Context, key model.DedupKey) (*Point, error)

	// Upsert writes vector and payload
	Upsert(ctx context.Context, p Point) error

	// SetPayload replaces the payload of an existing point, keeping its vector
	SetPayload(ctx context.Context, id string, payload model.Payload) error

	// Search returns up to limit nearest points
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)

	// Count returns the number of points
	Count(ctx context.Context) (int, error)

	// Scroll visits every payload in the collection
	Scroll(ctx context.Context, fn func(model.Payload) error) error

	// Close releases resources
	Close() error
}

// pointNamespace scopes the SHA-1 point IDs of this collection layout
var pointNamespace = uuid.MustParse("8f2d6b9e-3c41-5a7f-9e0d-1b2c3d4e5f60")

// PointID derives the stable point ID of a dedup slot, so rewriting the same
// slot always targets the same point
func PointID(key model.DedupKey) string {
	name := key.DocumentID + "\x00"
	if key.Chunked() {
		name += strconv.Itoa(key.Index())
	} else {
		name += "document"
	}
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or zero vectors
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
