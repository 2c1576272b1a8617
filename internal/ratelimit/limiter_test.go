package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter() (*Limiter, *fakeClock, *MemoryStore) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	return New(store, WithClock(clock.Now)), clock, store
}

var testCfg = Config{MaxHits: 3, Window: 10 * time.Minute, Block: 15 * time.Minute}

func TestConsumeAllowsMaxHitsThenBlocks(t *testing.T) {
	ctx := context.Background()
	l, clock, _ := newTestLimiter()
	key := Key("jobs-create-user", "u1")

	for i := 0; i < testCfg.MaxHits; i++ {
		d, err := l.Consume(ctx, key, testCfg)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("hit %d rejected, want allowed", i+1)
		}
	}

	d, err := l.Consume(ctx, key, testCfg)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if d.Allowed {
		t.Fatalf("hit beyond MaxHits allowed")
	}
	if got := d.RetryAfterSeconds(); got != 900 {
		t.Fatalf("RetryAfterSeconds = %d, want 900", got)
	}

	clock.Advance(5*time.Minute + 500*time.Millisecond)
	d, _ = l.Consume(ctx, key, testCfg)
	if d.Allowed {
		t.Fatalf("request during block allowed")
	}
	if got := d.RetryAfterSeconds(); got != 600 {
		t.Fatalf("RetryAfterSeconds = %d, want 600 (rounded up)", got)
	}

	clock.Advance(10 * time.Minute)
	d, _ = l.Consume(ctx, key, testCfg)
	if !d.Allowed {
		t.Fatalf("request after block elapsed rejected")
	}
}

func TestConsumeWindowResets(t *testing.T) {
	ctx := context.Background()
	l, clock, _ := newTestLimiter()
	key := Key("jobs-create-ip", "203.0.113.1")

	for i := 0; i < testCfg.MaxHits; i++ {
		if d, _ := l.Consume(ctx, key, testCfg); !d.Allowed {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	clock.Advance(testCfg.Window + time.Second)
	if d, _ := l.Consume(ctx, key, testCfg); !d.Allowed {
		t.Fatalf("first hit of a new window rejected")
	}
}

func TestConsumeKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLimiter()
	for i := 0; i < testCfg.MaxHits+1; i++ {
		_, _ = l.Consume(ctx, Key("s", "a"), testCfg)
	}
	if d, _ := l.Consume(ctx, Key("s", "b"), testCfg); !d.Allowed {
		t.Fatalf("unrelated key was blocked")
	}
}

func TestRecordHitThenStatusRejectsMaxHitsRequest(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLimiter()
	key := Key("register-ip", "198.51.100.4")

	for i := 1; i <= testCfg.MaxHits; i++ {
		if err := l.RecordHit(ctx, key, testCfg); err != nil {
			t.Fatalf("RecordHit: %v", err)
		}
		d, err := l.Status(ctx, key, testCfg)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		wantAllowed := i < testCfg.MaxHits
		if d.Allowed != wantAllowed {
			t.Fatalf("request %d allowed = %v, want %v", i, d.Allowed, wantAllowed)
		}
	}
}

func TestStatusDoesNotCount(t *testing.T) {
	ctx := context.Background()
	l, _, store := newTestLimiter()
	for i := 0; i < 10; i++ {
		d, err := l.Status(ctx, "k", testCfg)
		if err != nil || !d.Allowed {
			t.Fatalf("Status = %+v, %v", d, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("Status created %d records", store.Len())
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLimiter()
	for i := 0; i < testCfg.MaxHits+1; i++ {
		_, _ = l.Consume(ctx, "k", testCfg)
	}
	if err := l.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if d, _ := l.Consume(ctx, "k", testCfg); !d.Allowed {
		t.Fatalf("cleared key still blocked")
	}
}

func TestMemoryStoreEvictsLazily(t *testing.T) {
	ctx := context.Background()
	l, clock, store := newTestLimiter()
	_, _ = l.Consume(ctx, "k", testCfg)
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	clock.Advance(testCfg.Block + time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expired record still returned")
	}
	if store.Len() != 0 {
		t.Fatalf("expired record not evicted on access")
	}
}

func TestConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	l := New(store)
	cfg := Config{MaxHits: 25, Window: time.Minute, Block: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Consume(ctx, "shared", cfg)
			if err != nil {
				t.Errorf("Consume: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != cfg.MaxHits {
		t.Fatalf("allowed = %d, want %d", allowed, cfg.MaxHits)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{MaxHits: 0, Window: time.Second, Block: time.Second}).Validate(); err == nil {
		t.Fatalf("zero MaxHits accepted")
	}
	if _, err := New(NewMemoryStore(nil)).Consume(context.Background(), "k", Config{}); err == nil {
		t.Fatalf("Consume accepted empty config")
	}
}
