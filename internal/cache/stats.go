package cache

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"tempo/internal/core"
)

// DefaultLoadTimeout bounds a shared load, which outlives the caller that started it.
const DefaultLoadTimeout = 10 * time.Second

// StatsCache memoizes aggregation results per owner, window and category
// filter. Concurrent misses for one key share a single load. Invalidate
// discards everything, including loads already in flight.
type StatsCache struct {
	lru         *LRUCache[core.Stats]
	group       singleflight.Group
	loadTimeout time.Duration

	// bumped on Invalidate; loads started under an older generation are not stored
	generation atomic.Uint64

	hits   atomic.Int64
	misses atomic.Int64
}

func NewStatsCache(maxSize int, ttl time.Duration) *StatsCache {
	return &StatsCache{
		lru:         NewLRUCache[core.Stats](maxSize, ttl),
		loadTimeout: DefaultLoadTimeout,
	}
}

// StatsKey builds the cache key of one stats query.
func StatsKey(ownerID string, from, to int64, categoryID *string) string {
	cat := "*"
	if categoryID != nil {
		cat = strconv.Quote(*categoryID)
	}
	return fmt.Sprintf("%q|%d|%d|%s", ownerID, from, to, cat)
}

// VersionedKey scopes key to a storage data version, so entries computed
// before a write made by another process are never served after it.
func VersionedKey(version int64, key string) string {
	return "v" + strconv.FormatInt(version, 10) + "|" + key
}

// Get returns the cached stats for key or calls load once to fill it.
//
// The shared load runs detached from ctx with its own timeout: a caller
// that gives up returns ctx.Err() without failing the others waiting on
// the same key. Every caller gets its own copy of the result.
func (c *StatsCache) Get(ctx context.Context, key string, load func(context.Context) (core.Stats, error)) (core.Stats, error) {
	if s, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return cloneStats(s), nil
	}
	c.misses.Add(1)

	gen := c.generation.Load()
	ch := c.group.DoChan(strconv.FormatUint(gen, 10)+"/"+key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		s, err := load(lctx)
		if err != nil {
			return nil, err
		}
		c.lru.SetIf(key, s, func() bool { return c.generation.Load() == gen })
		return s, nil
	})

	select {
	case <-ctx.Done():
		return core.Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Stats{}, res.Err
		}
		return cloneStats(res.Val.(core.Stats)), nil
	}
}

// Invalidate drops every cached result.
func (c *StatsCache) Invalidate() {
	c.generation.Add(1)
	c.lru.Purge()
}

func (c *StatsCache) CleanExpired() int { return c.lru.CleanExpired() }

func (c *StatsCache) Size() int { return c.lru.Size() }

// Counters reports cache hits and misses since creation.
func (c *StatsCache) Counters() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func cloneStats(s core.Stats) core.Stats {
	s.ByCategory = slices.Clone(s.ByCategory)
	return s
}
