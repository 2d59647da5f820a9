package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis 缓存实现
type redisCache struct {
	client     *redis.Client
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

// newRedisCache 创建 Redis 缓存实例
func newRedisCache(cfg *Config) (Cache, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("%w: redis config is required", ErrCacheInvalidConfig)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheConnection, err)
	}

	return &redisCache{
		client:     client,
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// buildKey 构建完整的键名
func (r *redisCache) buildKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// Get 获取缓存
func (r *redisCache) Get(ctx context.Context, key string, value any) error {
	fullKey := r.buildKey(key)

	data, err := r.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheNotFound
		}
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}

	if err := r.serializer.Unmarshal(data, value); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	return nil
}

// Set 设置缓存
func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	fullKey := r.buildKey(key)

	bytes, err := r.serializer.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}

	if ttl == 0 {
		ttl = r.defaultTTL
	}

	if err := r.client.Set(ctx, fullKey, bytes, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}

	return nil
}

// Delete 删除缓存
func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = r.buildKey(key)
	}

	if err := r.client.Del(ctx, fullKeys...).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}

	return nil
}

// Exists 检查键是否存在
func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.buildKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}
	return count > 0, nil
}

// TTL 获取键的剩余生存时间
func (r *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.buildKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}

	if ttl == -2 {
		return 0, ErrCacheNotFound
	}

	if ttl == -1 {
		return -1, nil // 永不过期
	}

	return ttl, nil
}

// Expire 设置键的过期时间
func (r *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, r.buildKey(key), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}

	if !ok {
		return ErrCacheNotFound
	}

	return nil
}

// Incr 自增
func (r *redisCache) Incr(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Incr(ctx, r.buildKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}
	return val, nil
}

// Ping 检查连接
func (r *redisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheConnection, err)
	}
	return nil
}

// Close 关闭连接
func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOperation, err)
	}
	return nil
}
