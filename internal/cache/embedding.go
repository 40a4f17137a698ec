package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// EmbeddingStats reports embedding cache effectiveness
type EmbeddingStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Coalesced uint64  `json:"coalesced"` // Requests that awaited another caller's in-flight computation
	HitRate   float64 `json:"hit_rate"`
}

// EmbeddingCache maps content to vectors, shared by all concurrent ingestions.
// Concurrent requests for the same key share one computation.
type EmbeddingCache struct {
	store Cache // nil disables storage, coalescing still applies
	ttl   time.Duration
	group singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	coalesced atomic.Uint64
}

// NewEmbeddingCache wraps store. ttl 0 uses the store default.
func NewEmbeddingCache(store Cache, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{store: store, ttl: ttl}
}

// Get returns a cached vector without computing
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	if c.store == nil {
		return nil, false
	}
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		_ = c.store.Delete(key)
		return nil, false
	}
	return vec, true
}

// GetOrCompute returns the cached vector for key or runs compute once for all
// concurrent callers of the same key. compute runs detached from the caller's
// cancellation so one caller giving up does not fail the others; each caller
// still stops waiting when its own ctx is done.
//
// The bool reports a hit: the vector came from the store or from another
// caller's in-flight computation, so this caller caused no provider call.
// Stats counts the same way.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error)) ([]float32, bool, error) {
	if vec, ok := c.Get(key); ok {
		c.hits.Add(1)
		return vec, true, nil
	}

	// Only the leading caller's closure runs; the channel receive below
	// orders these writes before the reads
	var led, stored bool
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		led = true
		// Another caller may have stored it between our Get and now
		if vec, ok := c.Get(key); ok {
			stored = true
			return vec, nil
		}
		vec, err := compute(detached)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.Set(key, encodeVector(vec), c.ttl); err != nil {
				return nil, fmt.Errorf("store embedding: %w", err)
			}
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		hit := !led || stored
		switch {
		case !led:
			c.coalesced.Add(1)
		case stored:
			c.hits.Add(1)
		default:
			c.misses.Add(1)
		}
		if res.Err != nil {
			return nil, hit, res.Err
		}
		vec, _ := res.Val.([]float32)
		return vec, hit, nil
	}
}

// Stats returns hit/miss counters. Coalesced requests count as hits since
// they did not trigger a provider call.
func (c *EmbeddingCache) Stats() EmbeddingStats {
	s := EmbeddingStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
	}
	if total := s.Hits + s.Misses + s.Coalesced; total > 0 {
		s.HitRate = float64(s.Hits+s.Coalesced) / float64(total)
	}
	return s
}

// encodeVector packs a vector as little-endian float32s
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
