// Package cache provides a lazily populated per-key cache whose entries are
// built at most once at a time and kept for the process lifetime.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of one cache key.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LoadFunc builds the value of a key.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Observer receives cache events. *metrics.Metrics satisfies it.
type Observer interface {
	CacheHit(cache string)
	CacheMiss(cache string)
	CacheLoadFailed(cache string)
}

// Lazy caches the result of a LoadFunc per key. Concurrent callers of a key
// that is not loaded share a single load. Failed loads are not stored, so a
// later call retries.
type Lazy[K comparable, V any] struct {
	name string
	load LoadFunc[K, V]
	obs  Observer

	mu     sync.RWMutex
	values map[K]V
	states map[K]State
	// gens is bumped on invalidation so a load started earlier cannot
	// store a stale value.
	gens  map[K]uint64
	group singleflight.Group
}

// New returns an empty cache. obs may be nil.
func New[K comparable, V any](name string, load LoadFunc[K, V], obs Observer) *Lazy[K, V] {
	c := &Lazy[K, V]{name: name, load: load, obs: obs}
	c.Reset()
	return c
}

func (c *Lazy[K, V]) Name() string { return c.name }

// Reset drops every entry and returns the cache to its initial state.
func (c *Lazy[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.gens {
		c.gens[key]++
		c.group.Forget(flightKey(key))
	}
	if c.gens == nil {
		c.gens = make(map[K]uint64)
	}
	c.values = make(map[K]V)
	c.states = make(map[K]State)
}

// GetOrCreate returns the cached value of key, loading it on first use.
// The load itself is not cancelled by ctx; ctx only bounds how long this
// caller waits for it.
func (c *Lazy[K, V]) GetOrCreate(ctx context.Context, key K) (V, error) {
	if v, ok := c.Peek(key); ok {
		c.observe(Observer.CacheHit)
		return v, nil
	}
	c.observe(Observer.CacheMiss)

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key), func() (interface{}, error) {
		return c.populate(loadCtx, key)
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (c *Lazy[K, V]) populate(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	if v, ok := c.values[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gens[key]
	c.states[key] = Loading
	c.mu.Unlock()

	v, err := c.load(ctx, key)

	c.mu.Lock()
	if c.gens[key] == gen {
		if err != nil {
			c.states[key] = Failed
		} else {
			c.values[key] = v
			c.states[key] = Loaded
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.observe(Observer.CacheLoadFailed)
		var zero V
		return zero, err
	}
	return v, nil
}

// Peek returns the value of key without loading it.
func (c *Lazy[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Invalidate drops key. A load in flight for key finishes for its waiters
// but is not stored.
func (c *Lazy[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	delete(c.states, key)
	c.gens[key]++
	c.group.Forget(flightKey(key))
}

// State reports the lifecycle position of key.
func (c *Lazy[K, V]) State(key K) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[key]
}

// Len counts loaded entries.
func (c *Lazy[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Lazy[K, V]) observe(fn func(Observer, string)) {
	if c.obs != nil {
		fn(c.obs, c.name)
	}
}

func flightKey[K comparable](key K) string {
	return fmt.Sprintf("%T:%v", key, key)
}
