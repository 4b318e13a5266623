package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates no fresh catalog is cached.
var ErrCacheMiss = errors.New("catalog: cache miss")

// Cache stores a catalog snapshot with a TTL.
type Cache interface {
	Get(ctx context.Context) ([]Action, error)
	Put(ctx context.Context, actions []Action) error
}

// MemoryCache is a single-process TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	actions []Action
	setAt   time.Time
	clock   func() time.Time
}

// NewMemoryCache creates a cache holding entries for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (c *MemoryCache) WithClock(clock func() time.Time) *MemoryCache {
	c.clock = clock
	return c
}

func (c *MemoryCache) Get(_ context.Context) ([]Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.actions == nil || c.clock().Sub(c.setAt) > c.ttl {
		return nil, ErrCacheMiss
	}
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out, nil
}

func (c *MemoryCache) Put(_ context.Context, actions []Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = make([]Action, len(actions))
	copy(c.actions, actions)
	c.setAt = c.clock()
	return nil
}

// RedisCache shares a catalog snapshot across processes.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache under key with the given TTL.
func NewRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]Action, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: redis get: %w", err)
	}
	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("catalog: decode cached catalog: %w", err)
	}
	return actions, nil
}

func (c *RedisCache) Put(ctx context.Context, actions []Action) error {
	raw, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("catalog: encode catalog: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("catalog: redis set: %w", err)
	}
	return nil
}

// CachedProvider wraps a Provider with a Cache. Cache failures fall through
// to the underlying provider; a stale or broken cache never blocks discovery.
type CachedProvider struct {
	Provider Provider
	Cache    Cache
}

func (p *CachedProvider) ListActions(ctx context.Context) ([]Action, error) {
	if actions, err := p.Cache.Get(ctx); err == nil {
		return actions, nil
	}
	actions, err := p.Provider.ListActions(ctx)
	if err != nil {
		return nil, err
	}
	_ = p.Cache.Put(ctx, actions)
	return actions, nil
}
