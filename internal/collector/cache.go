package collector

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// UniverseCache stores symbol lists between cycles.
type UniverseCache interface {
	Load(ctx context.Context, key string) (symbols []string, ok bool, err error)
	Store(ctx context.Context, key string, symbols []string, ttl time.Duration) error
}

// CachedSource serves ListSymbols from a cache, falling back to the wrapped Source.
// Candles are never cached.
type CachedSource struct {
	Source
	Cache UniverseCache
	TTL   time.Duration
	Log   logrus.FieldLogger
}

// NewCachedSource wraps src with a universe cache.
func NewCachedSource(src Source, cache UniverseCache, ttl time.Duration, log logrus.FieldLogger) *CachedSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedSource{Source: src, Cache: cache, TTL: ttl, Log: log}
}

func (c *CachedSource) ListSymbols(ctx context.Context) ([]string, error) {
	key := "universe:" + c.Source.Name()
	symbols, ok, err := c.Cache.Load(ctx, key)
	switch {
	case err != nil:
		c.Log.WithError(err).Warn("universe cache read failed, using live source")
	case ok:
		return symbols, nil
	}

	symbols, err = c.Source.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Store(ctx, key, symbols, c.TTL); err != nil {
		c.Log.WithError(err).Warn("universe cache write failed")
	}
	return symbols, nil
}

// RedisUniverseCache keeps symbol lists as JSON values in Redis.
type RedisUniverseCache struct {
	client *redis.Client
	prefix string
}

// NewRedisUniverseCache connects to addr. The connection is lazy; use Ping to check it.
func NewRedisUniverseCache(addr, password string, db int) *RedisUniverseCache {
	return &RedisUniverseCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "stochsentinel:",
	}
}

func (c *RedisUniverseCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisUniverseCache) Load(ctx context.Context, key string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, false, err
	}
	return symbols, true, nil
}

func (c *RedisUniverseCache) Store(ctx context.Context, key string, symbols []string, ttl time.Duration) error {
	data, err := json.Marshal(symbols)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *RedisUniverseCache) Close() error {
	return c.client.Close()
}
