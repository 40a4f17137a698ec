package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/consolidator/internal/model"
)

// MemoryStore is a process-local Store. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	dims   int
	points map[string]Point
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) EnsureCollection(_ context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dims == 0 {
		s.dims = dims
	}
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, key model.DedupKey) (*Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[PointID(key)]
	if !ok {
		return nil, nil
	}
	out := p
	out.Vector = append([]float32(nil), p.Vector...)
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, p Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		s.dims = len(p.Vector)
	}
	if len(p.Vector) != s.dims {
		return fmt.Errorf("%w: got %d, collection has %d", ErrDimensionMismatch, len(p.Vector), s.dims)
	}
	p.Vector = append([]float32(nil), p.Vector...)
	s.points[p.ID] = p
	return nil
}

func (s *MemoryStore) SetPayload(ctx context.Context, id string, payload model.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.points[id]
	if !ok {
		return fmt.Errorf("point %s not found", id)
	}
	p.Payload = payload
	s.points[id] = p
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matches := make([]Match, 0, len(s.points))
	for id, p := range s.points {
		matches = append(matches, Match{ID: id, Score: Cosine(vector, p.Vector), Payload: p.Payload})
	}
	s.mu.RUnlock()

	return TopMatches(matches, limit), nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

func (s *MemoryStore) Scroll(ctx context.Context, fn func(model.Payload) error) error {
	s.mu.RLock()
	payloads := make([]model.Payload, 0, len(s.points))
	for _, p := range s.points {
		payloads = append(payloads, p.Payload)
	}
	s.mu.RUnlock()

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// TopMatches sorts by descending score (ID breaks ties) and keeps limit entries
func TopMatches(matches []Match, limit int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
