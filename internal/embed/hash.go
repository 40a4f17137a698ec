package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/ppiankov/consolidator/internal/extract"
)

const defaultHashDimensions = 256

// HashProvider is an offline embedder using signed feature hashing of word
// tokens and adjacent token pairs. Vectors are L2-normalized, so texts
// sharing vocabulary have positive cosine similarity. It never fails.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a hashing embedder
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashProvider{dims: dims}
}

// Name returns the provider name
func (p *HashProvider) Name() string {
	return "hash"
}

// Model returns the model identifier, which encodes the dimension
func (p *HashProvider) Model() string {
	return fmt.Sprintf("fnv-hashing-%d", p.dims)
}

// Dimensions returns the vector size
func (p *HashProvider) Dimensions() int {
	return p.dims
}

// IsAvailable always reports true
func (p *HashProvider) IsAvailable(context.Context) bool {
	return true
}

// Embed hashes text into a vector
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dims)
	tokens := extract.Tokenize(text)
	for i, tok := range tokens {
		p.add(vec, tok, 1)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Empty text still gets a valid unit vector
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (p *HashProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(p.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
