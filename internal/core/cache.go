package core

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// listingCache memoises catalog listings (makes, models by make, ...).
// It is never authoritative: every catalog write purges it.
type listingCache struct {
	lru *lru.Cache[string, any]

	// gen advances on every Purge. A load that began under an older
	// generation is returned to its caller but never stored.
	gen atomic.Uint64
}

func newListingCache(size int) (*listingCache, error) {
	c, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &listingCache{lru: c}, nil
}

func (c *listingCache) Purge() {
	c.gen.Add(1)
	c.lru.Purge()
}

func (c *listingCache) Len() int {
	return c.lru.Len()
}

// cached returns the value stored under key, loading and storing it on a miss.
// Load errors are not cached.
func cached[T any](ctx context.Context, c *listingCache, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.lru.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	gen := c.gen.Load()
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if c.gen.Load() == gen {
		c.lru.Add(key, v)
	}
	return v, nil
}
