// Package cache wraps the rehydration pipeline in a TTL + LRU bundle
// cache with per-key request coalescing. It is the engine's only mutable
// shared state; all map mutations happen under a single lock.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// Defaults for cache sizing.
const (
	DefaultCapacity = 1024
	DefaultTTL      = 5 * time.Minute
)

// Key is a stable hash over everything that makes a request distinct.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// entry owns the timestamps; bundles themselves carry none.
type entry struct {
	bundle    *types.Bundle
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a TTL + LRU bundle cache. Entries are evicted by TTL expiry or
// LRU pressure, whichever triggers first. Values are deep-copied on both
// write and read so cached bundles stay immutable.
type Cache struct {
	mu     sync.RWMutex
	lru    *lru.Cache[Key, *entry]
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
	logger *zap.Logger
}

// New creates a cache with the given capacity and TTL; zero values select
// the defaults.
func New(capacity int, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	inner, err := lru.New[Key, *entry](capacity)
	if err != nil {
		return nil, types.NewError(types.ErrKindCache, "create LRU cache", err)
	}
	return &Cache{
		lru:    inner,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}, nil
}

// ComputeKey hashes the request parameters that determine a bundle.
func ComputeKey(role, task string, limit, tokenBudget int, flags types.FeatureFlags) Key {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("|")
	b.WriteString(task)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d|%d|%t", limit, tokenBudget, flags.EntityExpansion)
	return sha256.Sum256([]byte(b.String()))
}

// Get returns a copy of the cached bundle for key, expiring stale entries
// on the way.
func (c *Cache) Get(key Key) (*types.Bundle, bool) {
	c.mu.RLock()
	e, found := c.lru.Get(key)
	if !found {
		c.mu.RUnlock()
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.RUnlock()
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		return nil, false
	}
	bundle := e.bundle.Clone()
	c.mu.RUnlock()
	return bundle, true
}

// Add stores a copy of bundle under key with the configured TTL.
func (c *Cache) Add(key Key, bundle *types.Bundle) {
	now := c.now()
	e := &entry{
		bundle:    bundle.Clone(),
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Lock()
	c.lru.Add(key, e)
	c.mu.Unlock()
}

// GetOrCompute returns the cached bundle for key or runs compute exactly
// once per key across concurrent callers, caching the result. The hit
// return is true when the caller was served without running compute
// itself (cache hit or coalesced onto another caller's computation).
func (c *Cache) GetOrCompute(key Key, compute func() (*types.Bundle, error)) (*types.Bundle, bool, error) {
	if bundle, ok := c.Get(key); ok {
		return bundle, true, nil
	}

	v, err, shared := c.group.Do(key.String(), func() (interface{}, error) {
		// Recheck after winning the flight: another caller may have
		// finished and populated the cache between Get and Do.
		if bundle, ok := c.Get(key); ok {
			return bundle, nil
		}
		bundle, err := compute()
		if err != nil {
			return nil, err
		}
		c.Add(key, bundle)
		return bundle, nil
	})
	if err != nil {
		return nil, false, err
	}
	bundle, ok := v.(*types.Bundle)
	if !ok {
		return nil, false, types.NewError(types.ErrKindCache, "unexpected cache value type", nil)
	}
	// Each coalesced caller gets its own copy of the shared result.
	return bundle.Clone(), shared, nil
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Len reports the current entry count, counting not-yet-swept expired
// entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
