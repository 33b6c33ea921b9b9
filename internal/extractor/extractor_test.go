package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/rehydrate/pkg/types"
)

func kinds(entities []types.Entity) []types.EntityKind {
	out := make([]types.EntityKind, len(entities))
	for i, e := range entities {
		out[i] = e.Kind
	}
	return out
}

func texts(entities []types.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Text
	}
	return out
}

func TestExtractIdentifiers(t *testing.T) {
	ex := New()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"pascal case", "refactor HybridVectorStore internals", []string{"HybridVectorStore"}},
		{"mixed case", "the parseConfig helper leaks", []string{"parseConfig"}},
		{"snake case", "rename chunk_overlap everywhere", []string{"chunk_overlap"}},
		{"plain words only", "fix the slow query", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(tt.query)
			assert.Equal(t, tt.want, texts(got))
			for _, e := range got {
				assert.Equal(t, types.EntityIdentifier, e.Kind)
			}
		})
	}
}

func TestExtractPathsAndURLs(t *testing.T) {
	ex := New()

	got := ex.Extract("see internal/fusion/fusion.go and https://pkg.go.dev/sort")
	require.Len(t, got, 2)
	assert.Equal(t, "internal/fusion/fusion.go", got[0].Text)
	assert.Equal(t, types.EntityPath, got[0].Kind)
	assert.Equal(t, "https://pkg.go.dev/sort", got[1].Text)
	assert.Equal(t, types.EntityURL, got[1].Kind)
}

// A URL contains slash-separated segments that would also match the path
// rule; the URL rule runs first and claims the span.
func TestExtractURLShadowsPath(t *testing.T) {
	ex := New()

	got := ex.Extract("docs at https://example.com/docs/config.md")
	require.Len(t, got, 1)
	assert.Equal(t, types.EntityURL, got[0].Kind)
}

func TestExtractTokens(t *testing.T) {
	ex := New()

	got := ex.Extract("how does the Hybrid Vector pipeline handle TTL")
	require.Len(t, got, 2)
	assert.Equal(t, "Hybrid Vector", got[0].Text)
	assert.Equal(t, types.EntityToken, got[0].Kind)
	assert.Equal(t, "TTL", got[1].Text)
	assert.Equal(t, types.EntityToken, got[1].Kind)
}

func TestExtractOrderedBySpan(t *testing.T) {
	ex := New()

	got := ex.Extract("CacheEntry eviction in internal/cache/cache.go via LRU")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"CacheEntry", "internal/cache/cache.go", "LRU"}, texts(got))
	assert.Equal(t, []types.EntityKind{
		types.EntityIdentifier, types.EntityPath, types.EntityToken,
	}, kinds(got))
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].SpanStart, got[i-1].SpanStart)
	}
}

func TestExtractDedupCaseInsensitive(t *testing.T) {
	ex := New()

	got := ex.Extract("ChunkStore and chunkStore and CHUNK_STORE again ChunkStore")
	require.Len(t, got, 2)
	// First occurrence wins; later case variants of the same normalized
	// text are dropped, but distinct spellings survive.
	assert.Equal(t, "ChunkStore", got[0].Text)
	assert.Equal(t, "CHUNK_STORE", got[1].Text)
}

func TestExtractEmptyAndNoMatch(t *testing.T) {
	ex := New()

	assert.Empty(t, ex.Extract(""))
	assert.Empty(t, ex.Extract("explain what happened here"))
}

func TestExtractDeterministic(t *testing.T) {
	ex := New()
	query := "trace RequestTimeout through internal/engine/engine.go and https://go.dev RRF"

	first := ex.Extract(query)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ex.Extract(query))
	}
}
