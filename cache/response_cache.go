package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tunemux/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TTL is how long a stored response is served without asking the network again.
const TTL = 5 * time.Minute

// LoadTimeout bounds a shared load. The load outlives any single caller, so it
// cannot borrow a caller's deadline.
const LoadTimeout = 30 * time.Second

// Entry is one cached response.
type Entry struct {
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// Backend stores entries. Implementations do not interpret freshness; the
// ResponseCache decides whether an entry is still usable.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Clear(ctx context.Context) error
}

// Loader produces the value for a cache miss.
type Loader func(ctx context.Context) ([]byte, error)

// ResponseCache fronts network calls with a TTL-keyed cache. It has no size
// bound and never sweeps; stale entries are ignored and overwritten on the next
// successful load.
type ResponseCache struct {
	backend Backend
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group
	log         *zap.Logger
}

// Option customises a ResponseCache.
type Option func(*ResponseCache)

// WithClock replaces the clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		c.now = now
	}
}

// WithLoadTimeout replaces LoadTimeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *ResponseCache) {
		c.loadTimeout = d
	}
}

// New builds a cache over backend.
func New(backend Backend, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		backend: backend,
		ttl:         TTL,
		loadTimeout: LoadTimeout,
		now:         time.Now,
		log:         logger.Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewMemory is shorthand for a cache over a fresh in-process map.
func NewMemory(opts ...Option) *ResponseCache {
	return New(NewMemoryBackend(), opts...)
}

// Key derives the cache key for a request from its URL and options. Options
// are JSON encoded, so map keys are ordered and equal options give equal keys.
func Key(url string, opts interface{}) string {
	if opts == nil {
		return url
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Sprintf("%s#%v", url, opts)
	}
	return url + "#" + string(raw)
}

// FetchWithCache returns the cached value for key when it is younger than the
// TTL. Otherwise it calls loader, stores a successful result and returns it.
// Failed loads are never stored. Concurrent misses on one key share a load;
// the load runs detached from the caller that started it, so cancelling one
// caller returns ctx.Err() to that caller only.
func (c *ResponseCache) FetchWithCache(ctx context.Context, key string, loader Loader) ([]byte, error) {
	if entry, ok := c.lookup(ctx, key); ok {
		return entry.Value, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		// Another caller may have stored it while we waited for the group.
		if entry, ok := c.lookup(loadCtx, key); ok {
			return entry.Value, nil
		}
		value, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := c.backend.Set(loadCtx, key, Entry{Value: value, StoredAt: c.now()}); err != nil {
			c.log.Warn("cache store failed", logger.String("key", key), logger.ErrorField(err))
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			c.log.Debug("cache load shared", logger.String("key", key))
		}
		return r.Val.([]byte), nil
	}
}

func (c *ResponseCache) lookup(ctx context.Context, key string) (Entry, bool) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", logger.String("key", key), logger.ErrorField(err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

// Clear drops every entry.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.log.Info("response cache cleared")
	return nil
}

// Fetch is FetchWithCache for JSON-encodable values.
func Fetch[T any](ctx context.Context, c *ResponseCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.FetchWithCache(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}
