package embed

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(64)
	a, _ := p.Embed(context.Background(), "the quarterly architecture decision")
	b, _ := p.Embed(context.Background(), "the quarterly architecture decision")

	if len(a) != 64 {
		t.Fatalf("Expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Vectors differ at %d", i)
		}
	}
	if math.Abs(cosine(a, a)-1) > 1e-6 {
		t.Errorf("Expected unit self-similarity, got %f", cosine(a, a))
	}
}

func TestHashProvider_SimilarTextsCloser(t *testing.T) {
	p := NewHashProvider(0)
	if p.Dimensions() != defaultHashDimensions {
		t.Fatalf("Expected default dimensions, got %d", p.Dimensions())
	}

	base, _ := p.Embed(context.Background(), "vector store ingestion with deduplication gate")
	near, _ := p.Embed(context.Background(), "vector store ingestion with a deduplication check")
	far, _ := p.Embed(context.Background(), "banana bread recipe")

	if cosine(base, near) <= cosine(base, far) {
		t.Errorf("Expected related text to be closer: near=%f far=%f", cosine(base, near), cosine(base, far))
	}
}

func TestHashProvider_EmptyText(t *testing.T) {
	vec, err := NewHashProvider(8).Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if vec[0] != 1 {
		t.Errorf("Expected unit vector for empty text, got %v", vec)
	}
}

func TestHashProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashProvider(8).Embed(ctx, "text"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
