package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmbeddingCache_HitAfterMiss(t *testing.T) {
	c := NewEmbeddingCache(NewMemoryCache(time.Minute, time.Minute), 0)
	calls := 0
	compute := func(ctx context.Context) ([]float32, error) {
		calls++
		return []float32{0.1, -0.5, 3}, nil
	}

	vec, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	if err != nil || hit {
		t.Fatalf("expected miss without error, got hit=%v err=%v", hit, err)
	}
	if len(vec) != 3 || vec[1] != -0.5 {
		t.Fatalf("unexpected vector %v", vec)
	}

	vec, hit, err = c.GetOrCompute(context.Background(), "k", compute)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if vec[2] != 3 {
		t.Errorf("expected decoded vector, got %v", vec)
	}
	if calls != 1 {
		t.Errorf("expected 1 compute call, got %d", calls)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestEmbeddingCache_ConcurrentSingleCompute(t *testing.T) {
	c := NewEmbeddingCache(NewMemoryCache(time.Minute, time.Minute), 0)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(ctx context.Context) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{1}, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "same", compute)
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 provider call for concurrent requests, got %d", calls.Load())
	}
}

func TestEmbeddingCache_CoalescedCountsAsHit(t *testing.T) {
	c := NewEmbeddingCache(nil, 0)
	release := make(chan struct{})
	var entered atomic.Int32
	compute := func(ctx context.Context) ([]float32, error) {
		<-release
		return []float32{1}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	var reportedHits atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entered.Add(1)
			_, hit, err := c.GetOrCompute(context.Background(), "same", compute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if hit {
				reportedHits.Add(1)
			}
		}()
	}

	for entered.Load() < callers {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected exactly one miss, got %+v", stats)
	}
	if got := uint64(reportedHits.Load()); got != stats.Hits+stats.Coalesced {
		t.Errorf("callers saw %d hits, stats counted %d", got, stats.Hits+stats.Coalesced)
	}
	if stats.Hits+stats.Coalesced+stats.Misses != callers {
		t.Errorf("expected %d lookups counted, got %+v", callers, stats)
	}
}

func TestEmbeddingCache_ErrorNotCached(t *testing.T) {
	c := NewEmbeddingCache(NewMemoryCache(time.Minute, time.Minute), 0)
	boom := errors.New("provider down")

	_, _, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]float32, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}

	vec, _, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]float32, error) {
		return []float32{2}, nil
	})
	if err != nil || len(vec) != 1 {
		t.Fatalf("expected recompute after error, got %v %v", vec, err)
	}
}

func TestEmbeddingCache_CallerCancellation(t *testing.T) {
	c := NewEmbeddingCache(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		<-started
		cancel()
	}()

	_, _, err := c.GetOrCompute(ctx, "slow", func(ctx context.Context) ([]float32, error) {
		close(started)
		<-release
		return []float32{1}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEmbeddingCache_NoStore(t *testing.T) {
	c := NewEmbeddingCache(nil, 0)
	calls := 0
	compute := func(ctx context.Context) ([]float32, error) {
		calls++
		return []float32{1}, nil
	}

	_, _, _ = c.GetOrCompute(context.Background(), "k", compute)
	_, hit, _ := c.GetOrCompute(context.Background(), "k", compute)
	if hit || calls != 2 {
		t.Errorf("expected no caching without a store, hit=%v calls=%d", hit, calls)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 1e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: expected %v, got %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated vector")
	}
}
