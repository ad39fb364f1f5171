// Package querycache is a small in-process read cache for timetable queries.
//
// Results are stored under (scope, key). A write that changes timetable data
// invalidates whole scopes; readers then reload through Fetch, which collapses
// concurrent misses for the same key into one load.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 2 * time.Minute

type entry struct {
	value   any
	expires time.Time
}

// Cache holds loaded values per scope.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group
	logger *zap.Logger

	mu     sync.Mutex
	scopes map[string]map[string]entry
	gens   map[string]uint64
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		scopes: make(map[string]map[string]entry),
		gens:   make(map[string]uint64),
	}
}

// Fetch returns the cached value for (scope, key) or calls load and caches
// its result. Errors are not cached. A load that started before an
// Invalidate of its scope returns its value without storing it, and callers
// arriving after the Invalidate start a fresh load.
//
// The load is shared by every waiting caller, so it runs detached from the
// first caller's cancellation. The first caller's deadline still bounds it.
func Fetch[T any](ctx context.Context, c *Cache, scope, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.get(scope, key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	c.mu.Lock()
	gen := c.gens[scope]
	c.mu.Unlock()

	flight := scope + "\x00" + strconv.FormatUint(gen, 10) + "\x00" + key
	ch := c.group.DoChan(flight, func() (any, error) {
		lctx, cancel := detach(ctx)
		defer cancel()
		val, err := load(lctx)
		if err != nil {
			return nil, err
		}
		c.put(scope, key, val, gen)
		return val, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if res.Err != nil {
		var zero T
		return zero, res.Err
	}
	if res.Shared {
		c.logger.Debug("querycache shared load", zap.String("scope", scope), zap.String("key", key))
	}
	t, _ := res.Val.(T)
	return t, nil
}

// detach drops ctx's cancellation but keeps its values and deadline.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(base, dl)
	}
	return context.WithCancel(base)
}

func (c *Cache) get(scope, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.scopes[scope]
	if m == nil {
		return nil, false
	}
	e, ok := m[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(m, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) put(scope, key string, v any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[scope] != gen {
		return
	}
	m := c.scopes[scope]
	if m == nil {
		m = make(map[string]entry)
		c.scopes[scope] = m
	}
	m[key] = entry{value: v, expires: c.now().Add(c.ttl)}
}

// Invalidate drops every key in the named scopes.
func (c *Cache) Invalidate(scopes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scopes {
		delete(c.scopes, s)
		c.gens[s]++
	}
	c.logger.Debug("querycache invalidated", zap.Strings("scopes", scopes))
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for s, m := range c.scopes {
		for k, e := range m {
			if !now.Before(e.expires) {
				delete(m, k)
				n++
			}
		}
		if len(m) == 0 {
			delete(c.scopes, s)
		}
	}
	return n
}

// Len is the number of live keys in a scope.
func (c *Cache) Len(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scopes[scope])
}
