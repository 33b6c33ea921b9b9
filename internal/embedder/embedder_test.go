package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHashingEmbedderRejectsBadDimension(t *testing.T) {
	_, err := NewHashingEmbedder(0)
	assert.Error(t, err)
	_, err = NewHashingEmbedder(-5)
	assert.Error(t, err)
}

func TestEmbedDeterministic(t *testing.T) {
	emb, err := NewHashingEmbedder(384)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "reciprocal rank fusion over hybrid retrieval")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := emb.Embed(ctx, "reciprocal rank fusion over hybrid retrieval")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEmbedNormalized(t *testing.T) {
	emb, err := NewHashingEmbedder(64)
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "some text worth embedding")
	require.NoError(t, err)
	require.Len(t, vec, 64)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestEmbedCaseInsensitive(t *testing.T) {
	emb, err := NewHashingEmbedder(128)
	require.NoError(t, err)
	ctx := context.Background()

	lower, err := emb.Embed(ctx, "hybrid vector store")
	require.NoError(t, err)
	upper, err := emb.Embed(ctx, "Hybrid Vector Store")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	emb, err := NewHashingEmbedder(32)
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, 32)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbedSimilarTextCloserThanUnrelated(t *testing.T) {
	emb, err := NewHashingEmbedder(384)
	require.NoError(t, err)
	ctx := context.Background()

	query, err := emb.Embed(ctx, "cache eviction policy")
	require.NoError(t, err)
	similar, err := emb.Embed(ctx, "the cache eviction policy drops entries")
	require.NoError(t, err)
	unrelated, err := emb.Embed(ctx, "quarterly marketing budget forecast")
	require.NoError(t, err)

	assert.Greater(t, dot(query, similar), dot(query, unrelated))
}

func TestDimension(t *testing.T) {
	emb, err := NewHashingEmbedder(256)
	require.NoError(t, err)
	assert.Equal(t, 256, emb.Dimension())
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
