// Package cachetest provides an in-process cache.Cache for tests that records
// the TTL of every write and can be switched into a failing mode. Like a
// network backend, it rejects calls whose context is already done.
package cachetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/cache"
)

var ErrUnavailable = errors.New("cache unavailable")

// Op names a cache operation for FailOn.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
	OpExists Op = "exists"
)

type Cache struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	failing map[Op]bool
	calls   int
}

func New() *Cache {
	return &Cache{
		values:  make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
		failing: make(map[Op]bool),
	}
}

// SetFailing makes every subsequent call return ErrUnavailable.
func (c *Cache) SetFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range []Op{OpGet, OpSet, OpDelete, OpExists} {
		c.failing[op] = failing
	}
}

// FailOn makes only the listed operations return ErrUnavailable. Other
// operations keep working.
func (c *Cache) FailOn(ops ...Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.failing)
	for _, op := range ops {
		c.failing[op] = true
	}
}

// check must be called with mu held.
func (c *Cache) check(ctx context.Context, op Op) error {
	c.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.failing[op] {
		return ErrUnavailable
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(ctx, OpGet); err != nil {
		return nil, err
	}

	v, ok := c.values[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(ctx, OpSet); err != nil {
		return err
	}

	c.values[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(ctx, OpDelete); err != nil {
		return err
	}

	for _, k := range keys {
		delete(c.values, k)
		delete(c.ttls, k)
	}
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(ctx, OpExists); err != nil {
		return false, err
	}

	_, ok := c.values[key]
	return ok, nil
}

// Put stores a raw value without going through Set.
func (c *Cache) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Value returns the raw stored value and whether the key is present.
func (c *Cache) Value(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// TTL returns the TTL recorded by the last Set of key.
func (c *Cache) TTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.ttls[key]
	return d, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Calls returns the number of operations issued against the cache.
func (c *Cache) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
