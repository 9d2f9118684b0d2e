// Package cache provides a small byte cache backed by Redis, falling back
// to process memory when Redis is not configured or unreachable.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache stores opaque values with a TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Incr atomically increments an integer counter stored at key
	Incr(ctx context.Context, key string) (int64, error)
}

// New returns a Redis cache for redisURL, or a memory cache when the URL is
// empty, invalid or the server does not answer a ping
func New(redisURL string, log *logrus.Logger) Cache {
	if redisURL == "" {
		log.Info("REDIS_URL not set, using in-memory feed cache")
		return NewMemoryCache()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("Invalid REDIS_URL, using in-memory feed cache")
		return NewMemoryCache()
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.WithError(err).Warn("Redis unreachable, using in-memory feed cache")
		return NewMemoryCache()
	}

	log.WithField("addr", opt.Addr).Info("Feed cache connected to Redis")
	return NewRedisCache(client)
}

// RedisCache implements Cache on a go-redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// MemoryCache implements Cache in process memory
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
}

type memItem struct {
	val []byte
	exp time.Time
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.getLocked(key)
	if !ok {
		return nil, false
	}
	return it.val, true
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.items[key] = memItem{val: val, exp: exp}
	m.sweepLocked()
	return nil
}

func (m *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if it, ok := m.getLocked(key); ok {
		v, err := strconv.ParseInt(string(it.val), 10, 64)
		if err != nil {
			return 0, err
		}
		n = v
	}
	n++
	m.items[key] = memItem{val: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

func (m *MemoryCache) getLocked(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}

// sweepLocked drops expired entries once the map grows past a threshold
func (m *MemoryCache) sweepLocked() {
	if len(m.items) < 1024 {
		return
	}
	now := time.Now()
	for k, it := range m.items {
		if !it.exp.IsZero() && now.After(it.exp) {
			delete(m.items, k)
		}
	}
}
