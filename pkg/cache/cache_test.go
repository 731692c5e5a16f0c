package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCacheSetPeekDelete(t *testing.T) {
	c := New[string](Options{TTL: 50 * time.Millisecond, StaleWhileRevalidate: 20 * time.Millisecond, MaxEntries: 10}, MetricsHooks{})

	c.Set("alpha", "value", 50*time.Millisecond)
	if val, ok := c.Peek("alpha"); !ok || val != "value" {
		t.Fatalf("expected peeked value")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	c.Delete("alpha")
	if _, ok := c.Peek("alpha"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestCacheClear(t *testing.T) {
	c := New[int](Options{TTL: time.Minute}, MetricsHooks{})
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", c.Len())
	}
}

func TestCacheGetHitMissStaleRefresh(t *testing.T) {
	var hits, misses, stale int
	var hookMu sync.Mutex
	hooks := MetricsHooks{
		OnHit:   func(string) { hookMu.Lock(); hits++; hookMu.Unlock() },
		OnMiss:  func(string) { hookMu.Lock(); misses++; hookMu.Unlock() },
		OnStale: func(string) { hookMu.Lock(); stale++; hookMu.Unlock() },
	}
	c := New[int](Options{TTL: 20 * time.Millisecond, StaleWhileRevalidate: 50 * time.Millisecond, MaxEntries: 10}, hooks)

	var mu sync.Mutex
	callCount := 0
	refreshCalled := make(chan struct{}, 1)
	loader := func(_ context.Context, _ string) (int, bool, error) {
		mu.Lock()
		callCount++
		count := callCount
		mu.Unlock()
		if count == 2 {
			refreshCalled <- struct{}{}
		}
		return count, true, nil
	}

	val, ok, err := c.Get(context.Background(), "alpha", loader)
	if err != nil || !ok || val != 1 {
		t.Fatalf("expected first load")
	}

	val, ok, err = c.Get(context.Background(), "alpha", loader)
	if err != nil || !ok || val != 1 {
		t.Fatalf("expected cache hit")
	}

	time.Sleep(25 * time.Millisecond)
	val, ok, err = c.Get(context.Background(), "alpha", loader)
	if err != nil || !ok || val != 1 {
		t.Fatalf("expected stale value")
	}

	select {
	case <-refreshCalled:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected refresh to run")
	}

	time.Sleep(10 * time.Millisecond)
	val, ok = c.Peek("alpha")
	if !ok || val != 2 {
		t.Fatalf("expected refreshed value, got %d", val)
	}

	hookMu.Lock()
	defer hookMu.Unlock()
	if misses != 1 || hits != 1 || stale != 1 {
		t.Fatalf("hooks: misses=%d hits=%d stale=%d, want 1/1/1", misses, hits, stale)
	}
}

func TestCacheNegativeTTL(t *testing.T) {
	c := New[string](Options{TTL: 50 * time.Millisecond, NegativeTTL: 30 * time.Millisecond, MaxEntries: 10}, MetricsHooks{})

	var mu sync.Mutex
	callCount := 0
	errBoom := errors.New("boom")
	loader := func(_ context.Context, _ string) (string, bool, error) {
		mu.Lock()
		callCount++
		mu.Unlock()
		return "", false, errBoom
	}

	_, ok, err := c.Get(context.Background(), "neg", loader)
	if ok || !errors.Is(err, errBoom) {
		t.Fatalf("expected negative load error")
	}

	_, ok, err = c.Get(context.Background(), "neg", loader)
	if ok || !errors.Is(err, errBoom) {
		t.Fatalf("expected cached negative error")
	}

	mu.Lock()
	firstCount := callCount
	mu.Unlock()
	if firstCount != 1 {
		t.Fatalf("expected single loader call, got %d", firstCount)
	}

	time.Sleep(35 * time.Millisecond)
	_, _, _ = c.Get(context.Background(), "neg", loader)

	mu.Lock()
	secondCount := callCount
	mu.Unlock()
	if secondCount < 2 {
		t.Fatalf("expected loader to run after negative ttl")
	}
}

func TestCacheWithoutNegativeTTLDoesNotStoreMisses(t *testing.T) {
	c := New[string](Options{TTL: time.Minute}, MetricsHooks{})
	calls := 0
	loader := func(_ context.Context, _ string) (string, bool, error) {
		calls++
		return "", false, nil
	}
	_, _, _ = c.Get(context.Background(), "k", loader)
	_, _, _ = c.Get(context.Background(), "k", loader)
	if calls != 2 {
		t.Fatalf("loader calls = %d, want 2", calls)
	}
}

func TestCacheEviction(t *testing.T) {
	c := New[string](Options{TTL: time.Minute, MaxEntries: 2}, MetricsHooks{})

	c.Set("first", "one", time.Minute)
	c.Set("second", "two", time.Minute)
	c.Set("third", "three", time.Minute)

	if _, ok := c.Peek("first"); ok {
		t.Fatalf("expected first entry to be evicted")
	}
	if _, ok := c.Peek("second"); !ok {
		t.Fatalf("expected second entry to remain")
	}
	if _, ok := c.Peek("third"); !ok {
		t.Fatalf("expected third entry to remain")
	}
}

func TestCacheDeleteFunc(t *testing.T) {
	c := New[string](Options{TTL: time.Minute}, MetricsHooks{})
	c.Set("regions:1", "a", time.Minute)
	c.Set("regions:2", "b", time.Minute)
	c.Set("countries:1", "c", time.Minute)

	removed := c.DeleteFunc(func(key string) bool { return key[:8] == "regions:" })
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Peek("countries:1"); !ok {
		t.Fatalf("expected unrelated entry to remain")
	}
}
