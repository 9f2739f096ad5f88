//go:build integration

package redis_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	translation "github.com/ahasasjeb/OpenAI-translation"
	quotaredis "github.com/ahasasjeb/OpenAI-translation/quota/redis"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestStore(t *testing.T, client *goredis.Client) *quotaredis.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := "test:" + t.Name() + ":"
	s := quotaredis.New(client, quotaredis.WithKeyPrefix(prefix))
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	})
	return s
}

func TestGetUsage_Empty(t *testing.T) {
	store := newTestStore(t, newTestClient(t))

	total, err := store.GetUsage(context.Background(), "2024-03-05")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for unseen day, got %d", total)
	}
}

func TestIncrementAndGet(t *testing.T) {
	store := newTestStore(t, newTestClient(t))
	ctx := context.Background()
	now := time.Now().UTC()

	total, err := store.IncrementUsage(ctx, "2024-03-05", 100, "model-a", now)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 100 {
		t.Fatalf("expected total=100, got %d", total)
	}

	total, err = store.IncrementUsage(ctx, "2024-03-05", 50, "model-a", now)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected total=150, got %d", total)
	}

	got, err := store.GetUsage(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if got != 150 {
		t.Fatalf("expected get=150, got %d", got)
	}
}

func TestConcurrentIncrementsSum(t *testing.T) {
	store := newTestStore(t, newTestClient(t))
	ctx := context.Background()
	now := time.Now().UTC()

	const goroutines = 20
	const perGoroutine = 10
	const delta = 7

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := store.IncrementUsage(ctx, "2024-03-05", delta, "model-a", now); err != nil {
					t.Errorf("increment: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	total, err := store.GetUsage(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if want := int64(goroutines * perGoroutine * delta); total != want {
		t.Fatalf("lost updates: expected %d, got %d", want, total)
	}
}

func TestTTLSetOnceNotExtended(t *testing.T) {
	client := newTestClient(t)
	store := newTestStore(t, client)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.IncrementUsage(ctx, "2024-03-05", 100, "model-a", now); err != nil {
		t.Fatalf("increment: %v", err)
	}

	totalKey := "test:" + t.Name() + ":2024-03-05:total"
	ttl1, err := client.TTL(ctx, totalKey).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl1 <= 0 {
		t.Fatalf("expected a TTL after first increment, got %v", ttl1)
	}

	// A later increment must not extend the window.
	if _, err := store.IncrementUsage(ctx, "2024-03-05", 50, "model-a", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	ttl2, err := client.TTL(ctx, totalKey).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl2 > ttl1 {
		t.Fatalf("TTL extended by second increment: %v -> %v", ttl1, ttl2)
	}
}

func TestDayKeysIndependent(t *testing.T) {
	store := newTestStore(t, newTestClient(t))
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.IncrementUsage(ctx, "2024-03-05", 100, "model-a", now); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := store.IncrementUsage(ctx, "2024-03-06", 50, "model-a", now); err != nil {
		t.Fatalf("increment: %v", err)
	}

	d1, err := store.GetUsage(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	d2, err := store.GetUsage(ctx, "2024-03-06")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if d1 != 100 || d2 != 50 {
		t.Fatalf("expected independent totals 100/50, got %d/%d", d1, d2)
	}
}

func TestBreakdown(t *testing.T) {
	store := newTestStore(t, newTestClient(t))
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.IncrementUsage(ctx, "2024-03-05", 100, "gpt-4o-mini", now); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := store.IncrementUsage(ctx, "2024-03-05", 30, "gpt-4o", now); err != nil {
		t.Fatalf("increment: %v", err)
	}

	bd, err := store.Breakdown(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if bd.TotalTokens != 130 || bd.Requests != 2 {
		t.Fatalf("unexpected breakdown: %+v", bd)
	}
	if bd.Models["gpt-4o-mini"] != 100 || bd.Models["gpt-4o"] != 30 {
		t.Fatalf("unexpected model histogram: %+v", bd.Models)
	}
}

func TestKindAndPing(t *testing.T) {
	store := newTestStore(t, newTestClient(t))

	if store.Kind() != translation.StoreRedis {
		t.Fatalf("expected redis kind, got %s", store.Kind())
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
