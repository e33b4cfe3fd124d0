package collector

import (
	"fmt"
	"sync"

	"BreakoutScanner/internal/model"
)

type cacheKey struct {
	Ticker   string
	Window   int
	Interval string
}

func (k cacheKey) String() string { return fmt.Sprintf("%s|%d|%s", k.Ticker, k.Window, k.Interval) }

// seriesCache is a bounded FIFO cache shared by the workers of one batch.
type seriesCache struct {
	mu    sync.RWMutex
	max   int
	order []cacheKey
	items map[cacheKey]*model.PriceSeries
}

func newSeriesCache(size int) *seriesCache {
	if size <= 0 {
		size = 1
	}
	return &seriesCache{max: size, items: make(map[cacheKey]*model.PriceSeries)}
}

func (c *seriesCache) get(k cacheKey) (*model.PriceSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[k]
	return s, ok
}

func (c *seriesCache) put(k cacheKey, s *model.PriceSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; ok {
		c.items[k] = s
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.order = append(c.order, k)
	c.items[k] = s
}

func (c *seriesCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
