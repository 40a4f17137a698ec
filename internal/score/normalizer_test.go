package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/consolidator/internal/model"
)

func TestNormalize_DetectsScale(t *testing.T) {
	n := NewNormalizer(DefaultSimilarityCeiling)

	tests := []struct {
		name   string
		raw    float64
		want   float64
		source model.ScoreSource
	}{
		{"zero", 0, 0, model.SourceNormalized},
		{"normalized", 0.42, 0.42, model.SourceNormalized},
		{"one", 1, 1, model.SourceNormalized},
		{"low percentage", 5, 0.05, model.SourcePercentage},
		{"similarity", 21.5, 21.5 / 30, model.SourceSimilarity},
		{"similarity ceiling", 30, 1, model.SourceSimilarity},
		{"percentage", 85, 0.85, model.SourcePercentage},
		{"over 100", 150, 1, model.SourcePercentage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.raw, model.SourceUnknown)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestNormalize_Scenarios(t *testing.T) {
	n := NewNormalizer(DefaultSimilarityCeiling)

	got, err := n.Normalize(21.5, model.SourceUnknown)
	require.NoError(t, err)
	assert.InDelta(t, 0.717, got.Value, 0.001)

	got, err = n.Normalize(85, model.SourceUnknown)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, got.Value, 1e-9)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(DefaultSimilarityCeiling)

	for _, raw := range []float64{0, 0.001, 0.5, 0.999, 1, 1.5, 7, 10, 10.5, 21.5, 29.9, 30, 31, 85, 99, 100, 1e6} {
		once, err := n.Normalize(raw, model.SourceUnknown)
		require.NoError(t, err)

		twice, err := n.Normalize(once.Value, model.SourceUnknown)
		require.NoError(t, err)

		assert.Equal(t, once.Value, twice.Value, "raw %v", raw)
		assert.GreaterOrEqual(t, once.Value, 0.0)
		assert.LessOrEqual(t, once.Value, 1.0)
	}
}

func TestNormalize_Hint(t *testing.T) {
	n := NewNormalizer(DefaultSimilarityCeiling)

	got, err := n.Normalize(21.5, model.SourcePercentage)
	require.NoError(t, err)
	assert.InDelta(t, 0.215, got.Value, 1e-9)
	assert.Equal(t, model.SourcePercentage, got.Source)

	got, err = n.Normalize(50, model.SourceSimilarity)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Value)

	got, err = n.Normalize(3, model.SourceNormalized)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Value)
}

func TestNormalize_Invalid(t *testing.T) {
	n := NewNormalizer(DefaultSimilarityCeiling)

	for _, raw := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.1, -50} {
		_, err := n.Normalize(raw, model.SourceUnknown)

		var invalid *InvalidScoreError
		require.ErrorAs(t, err, &invalid, "raw %v", raw)
		assert.NotEmpty(t, invalid.Error())
	}
}

func TestNewNormalizer_BadCeilingFallsBack(t *testing.T) {
	assert.Equal(t, DefaultSimilarityCeiling, NewNormalizer(0).Ceiling())
	assert.Equal(t, DefaultSimilarityCeiling, NewNormalizer(math.NaN()).Ceiling())
	assert.Equal(t, 50.0, NewNormalizer(50).Ceiling())
}
