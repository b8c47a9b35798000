package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestInMemoryCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryCache(time.Second)
	ctx := context.Background()

	if err := cache.Set(ctx, "question:abc", "config"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := cache.Get(ctx, "question:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "config" {
		t.Errorf("expected %v, got %v", "config", got)
	}
}

func TestInMemoryCache_Missing(t *testing.T) {
	cache := NewInMemoryCache(time.Second)
	_, err := cache.Get(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestInMemoryCache_Expiration(t *testing.T) {
	cache := NewInMemoryCache(20 * time.Millisecond)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := cache.Get(ctx, "k"); err == nil {
		t.Error("expected error for expired item, got nil")
	}
	if removed := cache.sweep(); removed != 1 {
		t.Errorf("expected sweep to remove 1 item, removed %d", removed)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d items", cache.Len())
	}
}

func TestInMemoryCache_BackgroundSweep(t *testing.T) {
	cache := NewInMemoryCache(10*time.Millisecond, WithCleanupInterval(5*time.Millisecond))
	defer cache.Close()

	if err := cache.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for cache.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired item was never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cache.Close()
}

func TestInMemoryCache_Delete(t *testing.T) {
	cache := NewInMemoryCache(time.Second)
	ctx := context.Background()
	_ = cache.Set(ctx, "k", "v")
	cache.Delete("k")
	if _, err := cache.Get(ctx, "k"); err == nil {
		t.Error("expected deleted item to be gone")
	}
}
