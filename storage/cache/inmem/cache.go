package inmemcache

import (
	"context"
	"sync"

	"github.com/trezcool/eduassist/core/cache"
)

// Cache is an in-memory cache.Cache; values are stored as-is.
type Cache struct {
	mutex sync.RWMutex
	table map[string]interface{}
}

var _ cache.Cache = (*Cache)(nil)

func New() *Cache {
	return &Cache{table: make(map[string]interface{})}
}

func (c *Cache) Get(ctx context.Context, key cache.Key) (interface{}, bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, ok := c.table[key.String()]
	return value, ok, nil
}

func (c *Cache) Set(ctx context.Context, key cache.Key, value interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.table[key.String()] = value
	return nil
}

func (c *Cache) Delete(ctx context.Context, key cache.Key) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.table, key.String())
	return nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.table)
}
