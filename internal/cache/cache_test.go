package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/rehydrate/pkg/types"
)

func testBundle(role string) *types.Bundle {
	return &types.Bundle{
		Role:        role,
		TokenBudget: 1000,
		TotalTokens: 120,
		Slots: []types.Slot{
			{Kind: types.SlotPinnedInvariants, Content: "invariants", TokenCount: 20},
			{Kind: types.SlotAnchorPriors},
			{Kind: types.SlotSemanticEvidence, Content: "evidence", TokenCount: 100},
			{Kind: types.SlotRecencyShots},
		},
	}
}

func newTestCache(t *testing.T, capacity int, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(capacity, ttl, nil)
	require.NoError(t, err)
	return c
}

func TestComputeKeyStableAndDistinct(t *testing.T) {
	flags := types.FeatureFlags{EntityExpansion: true}

	k1 := ComputeKey("coder", "fix the cache", 10, 4000, flags)
	k2 := ComputeKey("coder", "fix the cache", 10, 4000, flags)
	assert.Equal(t, k1, k2)

	assert.NotEqual(t, k1, ComputeKey("reviewer", "fix the cache", 10, 4000, flags))
	assert.NotEqual(t, k1, ComputeKey("coder", "fix the cache!", 10, 4000, flags))
	assert.NotEqual(t, k1, ComputeKey("coder", "fix the cache", 11, 4000, flags))
	assert.NotEqual(t, k1, ComputeKey("coder", "fix the cache", 10, 4001, flags))
	assert.NotEqual(t, k1, ComputeKey("coder", "fix the cache", 10, 4000, types.FeatureFlags{}))
}

func TestGetMissThenHit(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})

	_, found := c.Get(key)
	assert.False(t, found)

	c.Add(key, testBundle("coder"))
	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, "coder", got.Role)
}

func TestCachedBundleIsIsolated(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})

	original := testBundle("coder")
	c.Add(key, original)

	// Mutating either the stored original or a returned copy must not
	// affect later reads.
	original.Slots[2].Content = "mutated after add"
	first, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, "evidence", first.Slots[2].Content)

	first.Slots[2].Content = "mutated after get"
	second, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, "evidence", second.Slots[2].Content)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})
	c.Add(key, testBundle("coder"))

	now = base.Add(59 * time.Second)
	_, found := c.Get(key)
	assert.True(t, found, "entry within TTL")

	now = base.Add(61 * time.Second)
	_, found = c.Get(key)
	assert.False(t, found, "entry past TTL")

	// Expired entries are removed on access.
	assert.Zero(t, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(t, 2, time.Minute)

	k1 := ComputeKey("coder", "one", 10, 1000, types.FeatureFlags{})
	k2 := ComputeKey("coder", "two", 10, 1000, types.FeatureFlags{})
	k3 := ComputeKey("coder", "three", 10, 1000, types.FeatureFlags{})

	c.Add(k1, testBundle("coder"))
	c.Add(k2, testBundle("coder"))

	// Touch k1 so k2 is the least recently used.
	_, found := c.Get(k1)
	require.True(t, found)

	c.Add(k3, testBundle("coder"))
	assert.Equal(t, 2, c.Len())

	_, found = c.Get(k2)
	assert.False(t, found, "least recently used entry was evicted")
	_, found = c.Get(k1)
	assert.True(t, found)
	_, found = c.Get(k3)
	assert.True(t, found)
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})

	var computes atomic.Int64
	release := make(chan struct{})
	compute := func() (*types.Bundle, error) {
		computes.Add(1)
		<-release
		return testBundle("coder"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*types.Bundle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCompute(key, compute)
		}()
	}

	// Let every goroutine reach the flight before releasing it.
	for computes.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load(), "concurrent callers share one computation")
	for i, b := range results {
		require.NoError(t, errs[i], "caller %d", i)
		require.NotNil(t, b, "caller %d", i)
		assert.Equal(t, "coder", b.Role)
	}

	// Distinct copies per caller.
	results[0].Slots[2].Content = "mutated"
	assert.Equal(t, "evidence", results[1].Slots[2].Content)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})

	var computes int
	compute := func() (*types.Bundle, error) {
		computes++
		return testBundle("coder"), nil
	}

	_, hit, err := c.GetOrCompute(key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.GetOrCompute(key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, computes)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})

	boom := errors.New("retrieval failed")
	_, _, err := c.GetOrCompute(key, func() (*types.Bundle, error) { return nil, boom })
	require.Error(t, err)
	assert.Zero(t, c.Len(), "failed computations leave no entry")

	b, hit, err := c.GetOrCompute(key, func() (*types.Bundle, error) { return testBundle("coder"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, b)
}

func TestPurge(t *testing.T) {
	c := newTestCache(t, 8, time.Minute)
	key := ComputeKey("coder", "task", 10, 1000, types.FeatureFlags{})
	c.Add(key, testBundle("coder"))
	require.Equal(t, 1, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
	_, found := c.Get(key)
	assert.False(t, found)
}

func TestDefaultsApplied(t *testing.T) {
	c, err := New(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, c.ttl)
}
