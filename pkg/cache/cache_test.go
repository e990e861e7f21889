package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Close float64 `json:"close"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	if err := mc.Set(ctx, "k", []point{{1.5}, {2}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []point
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].Close != 1.5 {
		t.Fatalf("unexpected value %v", got)
	}
	var s string
	if err := mc.Set(ctx, "s", "raw", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mc.Get(ctx, "s", &s); err != nil || s != "raw" {
		t.Fatalf("string round trip: %q %v", s, err)
	}
}

func TestMemoryCacheExpiryAndMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	_ = mc.Set(ctx, "k", "v", time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()
	_ = mc.Set(ctx, "a", "1", time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	time.Sleep(time.Millisecond)
	var s string
	_ = mc.Get(ctx, "a", &s)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", "3", time.Minute)
	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("expected a and c to remain")
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	if ok, _ := mc.TryLock(ctx, "l", time.Minute); !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "l", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	_ = mc.Unlock(ctx, "l")
	if ok, _ := mc.TryLock(ctx, "l", time.Minute); !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestLayeredCachePromotes(t *testing.T) {
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, 10)
	defer lc.Close()
	ctx := context.Background()
	_ = l2.Set(ctx, "k", point{3}, time.Minute)
	var p point
	if err := lc.Get(ctx, "k", &p); err != nil || p.Close != 3 {
		t.Fatalf("get through L2: %v %v", p, err)
	}
	_ = l2.Delete(ctx, "k")
	p = point{}
	if err := lc.Get(ctx, "k", &p); err != nil || p.Close != 3 {
		t.Fatalf("expected L1 hit after promotion: %v %v", p, err)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("closes", "AAPL", 2024); got != "closes:AAPL:2024" {
		t.Fatalf("got %q", got)
	}
}
