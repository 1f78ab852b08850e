package storage

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached keeps recently loaded values in memory in front of another backend.
// Writes go through to the inner backend first and only then update the cache.
type Cached struct {
	inner KV
	cache *lru.Cache[string, []byte]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewCached wraps inner with an LRU of the given size (256 when size <= 0).
func NewCached(inner KV, size int) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Load serves from cache when possible.
func (c *Cached) Load(ctx context.Context, key []byte) ([]byte, error) {
	if value, ok := c.cache.Get(string(key)); ok {
		c.count(true)
		return cloneBytes(value), nil
	}
	c.count(false)

	value, err := c.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(string(key), cloneBytes(value))
	return value, nil
}

// Save writes through.
func (c *Cached) Save(ctx context.Context, key, value []byte) error {
	if err := c.inner.Save(ctx, key, value); err != nil {
		c.cache.Remove(string(key))
		return err
	}
	c.cache.Add(string(key), cloneBytes(value))
	return nil
}

// RangeScan is never cached.
func (c *Cached) RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error) {
	return c.inner.RangeScan(ctx, prefix, order)
}

// Batch commits to the inner backend, then mirrors the ops into the cache.
func (c *Cached) Batch(ctx context.Context, ops []Op) error {
	if err := c.inner.Batch(ctx, ops); err != nil {
		for _, op := range ops {
			c.cache.Remove(string(op.Key))
		}
		return err
	}
	for _, op := range ops {
		switch op.Type {
		case OpPut:
			c.cache.Add(string(op.Key), cloneBytes(op.Value))
		case OpDelete:
			c.cache.Remove(string(op.Key))
		}
	}
	return nil
}

// Close purges the cache and closes the inner backend.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Stats reports cache hit and miss counters.
func (c *Cached) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cached) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

var _ KV = (*Cached)(nil)
