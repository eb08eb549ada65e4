package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheBasicOps(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if v, err := c.Get(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing key should read empty, got %q %v", v, err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := c.Get(ctx, "k"); v != "v" {
		t.Fatalf("get = %q", v)
	}
	if ttl, err := c.TTL(ctx, "k"); err != nil || ttl <= 0 {
		t.Fatalf("ttl = %v %v", ttl, err)
	}

	mr.FastForward(2 * time.Minute)
	if v, _ := c.Get(ctx, "k"); v != "" {
		t.Fatalf("expired key still readable: %q", v)
	}

	_ = c.Set(ctx, "a", "1", 0)
	if err := c.Del(ctx, "a"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("a") {
		t.Fatal("key should be deleted")
	}
}

func TestGetWithCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	fetch := func(value int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls++
			return value, nil
		}
	}
	get := func(key string, value int) int {
		v, err := GetWithCached(ctx, c, key, time.Minute, time.Second,
			func(v int) bool { return v == 0 },
			func(v int) (string, error) { return strconv.Itoa(v), nil },
			strconv.Atoi,
			fetch(value),
		)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		return v
	}

	if get("n", 7) != 7 || get("n", 9) != 7 {
		t.Fatal("second read should come from cache")
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}

	if get("empty", 0) != 0 || get("empty", 5) != 0 {
		t.Fatal("absence should be cached")
	}
	if calls != 2 {
		t.Fatalf("expected two fetches, got %d", calls)
	}
}

func TestJitterTTL(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := JitterTTL(time.Minute)
		if got < 54*time.Second || got > time.Minute {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
	if JitterTTL(0) != 0 {
		t.Fatal("zero ttl should stay zero")
	}
}

func TestRedisCacheNamespace(t *testing.T) {
	base, mr := newTestCache(t)
	c := base.WithNamespace("dev")
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("dev:k") || mr.Exists("k") {
		t.Fatalf("key should be stored under the namespace, keys=%v", mr.Keys())
	}
	if v, _ := base.Get(ctx, "k"); v != "" {
		t.Fatalf("unprefixed cache should not see namespaced key, got %q", v)
	}
	if n, err := c.Incr(ctx, "n"); err != nil || n != 1 {
		t.Fatalf("incr = %d %v", n, err)
	}
	if err := c.Del(ctx, "k", "n"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("keys left: %v", mr.Keys())
	}
}

func TestRedisConfigApplyDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 32}
	cfg.ApplyDefaults()
	if cfg.PoolSize != 32 || cfg.MaxRetries != 3 || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestNewRedisCacheWithConfigNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheWithConfig(&RedisConfig{Addr: mr.Addr(), Namespace: "ta"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Set(context.Background(), "x", "1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("ta:x") {
		t.Fatalf("expected ta:x, keys=%v", mr.Keys())
	}
	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatal("empty addr should be rejected")
	}
}
