package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 内存缓存实现
type memoryCache struct {
	cache      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
	mu         sync.Mutex // 保护 Incr 的 Get-Modify-Set
}

// newMemoryCache 创建内存缓存实例
func newMemoryCache(cfg *Config) (Cache, error) {
	if cfg.Memory == nil {
		cfg.Memory = DefaultMemoryConfig()
	}

	return &memoryCache{
		cache:      gocache.New(cfg.Memory.DefaultExpiration, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// buildKey 构建完整的键名
func (m *memoryCache) buildKey(key string) string {
	if m.keyPrefix == "" {
		return key
	}
	return m.keyPrefix + key
}

// Get 获取缓存
func (m *memoryCache) Get(ctx context.Context, key string, value any) error {
	data, found := m.cache.Get(m.buildKey(key))
	if !found {
		return ErrCacheNotFound
	}

	bytes, ok := data.([]byte)
	if !ok {
		return fmt.Errorf("%w: invalid cache data type", ErrCacheSerialization)
	}

	if err := m.serializer.Unmarshal(bytes, value); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	return nil
}

// Set 设置缓存
func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	bytes, err := m.serializer.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	if ttl == 0 {
		ttl = m.defaultTTL
	}

	m.cache.Set(m.buildKey(key), bytes, ttl)
	return nil
}

// Delete 删除缓存
func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(m.buildKey(key))
	}
	return nil
}

// Exists 检查键是否存在
func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.cache.Get(m.buildKey(key))
	return found, nil
}

// TTL 获取键的剩余生存时间
func (m *memoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	_, expiration, found := m.cache.GetWithExpiration(m.buildKey(key))
	if !found {
		return 0, ErrCacheNotFound
	}

	if expiration.IsZero() {
		return -1, nil // 永不过期
	}

	ttl := time.Until(expiration)
	if ttl < 0 {
		return 0, ErrCacheExpired
	}

	return ttl, nil
}

// Expire 设置键的过期时间
func (m *memoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	fullKey := m.buildKey(key)
	data, found := m.cache.Get(fullKey)
	if !found {
		return ErrCacheNotFound
	}

	m.cache.Set(fullKey, data, ttl)
	return nil
}

// Incr 自增
func (m *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	fullKey := m.buildKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.cache.Get(fullKey)
	var current int64

	if found {
		bytes, ok := data.([]byte)
		if !ok {
			return 0, fmt.Errorf("%w: invalid cache data type", ErrCacheOperation)
		}
		if err := m.serializer.Unmarshal(bytes, &current); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCacheSerialization, err)
		}
	}

	newValue := current + 1

	bytes, err := m.serializer.Marshal(newValue)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	m.cache.Set(fullKey, bytes, m.defaultTTL)
	return newValue, nil
}

// Ping 检查连接
func (m *memoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close 关闭连接
func (m *memoryCache) Close() error {
	m.cache.Flush()
	return nil
}
