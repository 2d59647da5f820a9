package cache

import (
	"context"
	"testing"
	"time"
)

// TestMemoryCache 测试内存缓存
func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	c, err := NewWithOptions(
		WithMemory(DefaultMemoryConfig()),
		WithKeyPrefix("test:"),
	)
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	defer c.Close()

	t.Run("Set/Get", func(t *testing.T) {
		type Token struct {
			Value     string
			IssuedAt  int64
			ExpiresIn int64
		}

		token := Token{Value: "abc123", IssuedAt: 1700000000, ExpiresIn: 7200}
		if err := c.Set(ctx, "token:gzh", token, 10*time.Minute); err != nil {
			t.Fatalf("failed to set cache: %v", err)
		}

		var cached Token
		if err := c.Get(ctx, "token:gzh", &cached); err != nil {
			t.Fatalf("failed to get cache: %v", err)
		}

		if cached != token {
			t.Errorf("cached token mismatch: got %+v, want %+v", cached, token)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := c.Set(ctx, "key1", "value1", 10*time.Minute); err != nil {
			t.Fatalf("failed to set cache: %v", err)
		}

		if err := c.Delete(ctx, "key1"); err != nil {
			t.Fatalf("failed to delete cache: %v", err)
		}

		var value string
		if err := c.Get(ctx, "key1", &value); err != ErrCacheNotFound {
			t.Errorf("expected ErrCacheNotFound, got %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		if err := c.Set(ctx, "key2", "value2", 10*time.Minute); err != nil {
			t.Fatalf("failed to set cache: %v", err)
		}

		exists, err := c.Exists(ctx, "key2")
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if !exists {
			t.Error("expected key to exist")
		}

		exists, err = c.Exists(ctx, "missing")
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if exists {
			t.Error("expected key to not exist")
		}
	})

	t.Run("TTL", func(t *testing.T) {
		if err := c.Set(ctx, "key3", "value3", time.Minute); err != nil {
			t.Fatalf("failed to set cache: %v", err)
		}

		ttl, err := c.TTL(ctx, "key3")
		if err != nil {
			t.Fatalf("failed to get ttl: %v", err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("unexpected ttl: %v", ttl)
		}

		if _, err := c.TTL(ctx, "missing"); err != ErrCacheNotFound {
			t.Errorf("expected ErrCacheNotFound, got %v", err)
		}
	})

	t.Run("Incr", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := c.Incr(ctx, "counter")
			if err != nil {
				t.Fatalf("failed to incr: %v", err)
			}
			if got != want {
				t.Errorf("Incr = %d, want %d", got, want)
			}
		}
	})
}

// TestConfigValidate 测试配置校验
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"default memory", DefaultConfig(), false},
		{"invalid driver", &Config{Driver: "etcd", Serializer: &JSONSerializer{}}, true},
		{"redis missing addr", &Config{Driver: DriverRedis, Serializer: &JSONSerializer{}, Redis: &RedisConfig{}}, true},
		{"redis ok", &Config{Driver: DriverRedis, Serializer: &JSONSerializer{}, Redis: DefaultRedisConfig()}, false},
		{"missing serializer", &Config{Driver: DriverMemory, Memory: DefaultMemoryConfig()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
