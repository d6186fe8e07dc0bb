//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/cache"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	s := cache.NewRedisStore(client, cache.WithKeyPrefix("test:"+t.Name()+":"))

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get() on empty = %v, %v, want miss", ok, err)
	}
	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v, %v, want v", got, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Get() after Delete() hit")
	}
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	prefix := "test:" + t.Name() + ":"
	s := cache.NewRedisStore(client, cache.WithKeyPrefix(prefix))

	if err := s.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	ttl, err := client.TTL(ctx, prefix+"k").Result()
	if err != nil {
		t.Fatalf("TTL() failed: %v", err)
	}
	if ttl <= 0 || ttl > 30*time.Second {
		t.Errorf("TTL = %v, want (0, 30s]", ttl)
	}
}

func TestRedisStore_SharedAcrossCaches(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	prefix := "test:" + t.Name() + ":"

	a := cache.New(cache.NewRedisStore(client, cache.WithKeyPrefix(prefix)), time.Minute)
	b := cache.New(cache.NewRedisStore(client, cache.WithKeyPrefix(prefix)), time.Minute)

	a.PutKey(ctx, "shared", &backends.Response{RequestID: "req-1", Content: "hi", Status: backends.StatusOK}, time.Minute)
	got, ok := b.GetKey(ctx, "shared")
	if !ok {
		t.Fatal("second cache did not see entry written by the first")
	}
	if got.Content != "hi" || !got.Cached {
		t.Errorf("GetKey() = %+v, want cached content", got)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	s := cache.NewRedisStore(newTestClient(t))
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
