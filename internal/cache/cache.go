// Package cache keeps completed fetch results in memory so re-running an
// identical query within one process does not hit the API again. Nothing
// is persisted across restarts.
package cache

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/gridwatch/psefetch/internal/models"
)

// ResultCache is an LRU over completed fetch results keyed by
// window+filter+page size. Partial results are never cached: a retry of
// the same query should go back to the network.
type ResultCache struct {
	lru *lru.Cache
}

func New(size int) (*ResultCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c}, nil
}

func (c *ResultCache) Get(key string) (models.FetchResult, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return models.FetchResult{}, false
	}
	return v.(models.FetchResult), true
}

func (c *ResultCache) Put(key string, result models.FetchResult) {
	if result.Partial {
		return
	}
	c.lru.Add(key, result)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
