package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/rehydrate/pkg/types"
)

func validRole(name string) types.RoleConfig {
	return types.RoleConfig{Role: name, TokenBudget: 4000}
}

func TestNewStoreAppliesDefaults(t *testing.T) {
	store, err := NewStore([]types.RoleConfig{validRole("coder")})
	require.NoError(t, err)

	rc, err := store.Get("coder")
	require.NoError(t, err)
	assert.Equal(t, DefaultPinnedCap, rc.SlotWeights.PinnedCap)
	assert.Equal(t, DefaultAnchorWeight, rc.SlotWeights.Anchor)
	assert.Equal(t, DefaultSemanticWeight, rc.SlotWeights.Semantic)
	assert.Equal(t, DefaultRecencyWeight, rc.SlotWeights.Recency)
	assert.Equal(t, DefaultKeepPerFile, rc.KeepPerFile)
	assert.Equal(t, DefaultOverlapFraction, rc.OverlapFraction)
}

func TestNewStoreKeepsExplicitWeights(t *testing.T) {
	rc := validRole("coder")
	rc.SlotWeights = types.SlotWeights{PinnedCap: 150, Anchor: 0.05, Semantic: 0.75, Recency: 0.10}

	store, err := NewStore([]types.RoleConfig{rc})
	require.NoError(t, err)

	got, err := store.Get("coder")
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.SlotWeights.Semantic)
	assert.Equal(t, 150, got.SlotWeights.PinnedCap)
}

func TestNewStoreEmptyIsConfigError(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigError(err))
}

func TestNewStoreDuplicateRole(t *testing.T) {
	_, err := NewStore([]types.RoleConfig{validRole("coder"), validRole("coder")})
	require.Error(t, err)
	assert.True(t, types.IsConfigError(err))
}

func TestNewStoreInvalidWeights(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.RoleConfig)
	}{
		{"anchor too high", func(rc *types.RoleConfig) {
			rc.SlotWeights = types.SlotWeights{Anchor: 0.3, Semantic: 0.6, Recency: 0.05}
		}},
		{"semantic too low", func(rc *types.RoleConfig) {
			rc.SlotWeights = types.SlotWeights{Anchor: 0.1, Semantic: 0.4, Recency: 0.05}
		}},
		{"recency too high", func(rc *types.RoleConfig) {
			rc.SlotWeights = types.SlotWeights{Anchor: 0.1, Semantic: 0.6, Recency: 0.2}
		}},
		{"weights sum over one", func(rc *types.RoleConfig) {
			rc.SlotWeights = types.SlotWeights{Anchor: 0.2, Semantic: 0.8, Recency: 0.1}
		}},
		{"zero budget", func(rc *types.RoleConfig) { rc.TokenBudget = 0 }},
		{"pinned over budget", func(rc *types.RoleConfig) {
			rc.TokenBudget = 10
			rc.Pinned = "this pinned text estimates to well over ten tokens in total length"
		}},
		{"empty name", func(rc *types.RoleConfig) { rc.Role = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := validRole("coder")
			tt.mutate(&rc)
			_, err := NewStore([]types.RoleConfig{rc})
			require.Error(t, err)
			assert.True(t, types.IsConfigError(err))
		})
	}
}

func TestGetUnknownRole(t *testing.T) {
	store, err := NewStore([]types.RoleConfig{validRole("coder")})
	require.NoError(t, err)

	_, err = store.Get("ghost")
	require.Error(t, err)
	assert.True(t, types.IsConfigError(err))
}

func TestRolesSorted(t *testing.T) {
	store, err := NewStore([]types.RoleConfig{
		validRole("reviewer"), validRole("coder"), validRole("architect"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"architect", "coder", "reviewer"}, store.Roles())
}
