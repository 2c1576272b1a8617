// Package ratelimit implements fixed-window request limiting with a block
// period once the window's budget is spent.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Config describes one limited scope.
type Config struct {
	MaxHits int
	Window  time.Duration
	Block   time.Duration
}

// Validate rejects non-positive settings.
func (c Config) Validate() error {
	if c.MaxHits <= 0 || c.Window <= 0 || c.Block <= 0 {
		return errors.New("ratelimit: max hits, window and block must be positive")
	}
	return nil
}

// ttl bounds how long a record can still matter.
func (c Config) ttl() time.Duration {
	if c.Block > c.Window {
		return c.Block
	}
	return c.Window
}

// Default is used by mutation routes that do not name a tighter scope.
var Default = Config{MaxHits: 20, Window: 10 * time.Minute, Block: 15 * time.Minute}

// Record is the state kept per key.
type Record struct {
	WindowStart  time.Time `json:"windowStart"`
	Hits         int       `json:"hits"`
	BlockedUntil time.Time `json:"blockedUntil,omitempty"`
}

func (r Record) blocked(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil)
}

func (r Record) expired(now time.Time, cfg Config) bool {
	if now.Sub(r.WindowStart) > cfg.Window {
		return true
	}
	return !r.BlockedUntil.IsZero() && !now.Before(r.BlockedUntil)
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the remaining block up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// Store persists records. Update must apply fn atomically per key and keep
// the result for at least ttl.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn func(rec Record, ok bool) Record) (Record, error)
	Delete(ctx context.Context, key string) error
}

// Limiter evaluates configs against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter backed by store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key joins a scope and an identifier, e.g. "jobs-create-ip|203.0.113.7".
func Key(scope, identifier string) string {
	return scope + "|" + strings.TrimSpace(identifier)
}

// Consume records a hit and decides on it in one atomic step: MaxHits
// requests pass within a window, the next one starts the block.
func (l *Limiter) Consume(ctx context.Context, key string, cfg Config) (Decision, error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, err
	}
	now := l.now()
	var decision Decision
	_, err := l.store.Update(ctx, key, cfg.ttl(), func(rec Record, ok bool) Record {
		if ok && rec.blocked(now) {
			decision = Decision{Allowed: false, RetryAfter: rec.BlockedUntil.Sub(now)}
			return rec
		}
		if !ok || rec.expired(now, cfg) {
			rec = Record{WindowStart: now}
		}
		if rec.Hits >= cfg.MaxHits {
			rec.BlockedUntil = now.Add(cfg.Block)
			decision = Decision{Allowed: false, RetryAfter: cfg.Block}
			return rec
		}
		rec.Hits++
		decision = Decision{Allowed: true}
		return rec
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// RecordHit counts a request without deciding on it. Reaching MaxHits starts
// the block, so a caller that records and then asks Status rejects the
// MaxHits-th request itself.
func (l *Limiter) RecordHit(ctx context.Context, key string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	now := l.now()
	_, err := l.store.Update(ctx, key, cfg.ttl(), func(rec Record, ok bool) Record {
		if !ok || rec.expired(now, cfg) {
			return Record{WindowStart: now, Hits: 1}
		}
		rec.Hits++
		if rec.Hits >= cfg.MaxHits {
			rec.BlockedUntil = now.Add(cfg.Block)
		}
		return rec
	})
	return err
}

// Status reports whether key is currently blocked. It never counts a hit.
func (l *Limiter) Status(ctx context.Context, key string, cfg Config) (Decision, error) {
	rec, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	now := l.now()
	if ok && rec.blocked(now) {
		return Decision{Allowed: false, RetryAfter: rec.BlockedUntil.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Clear forgets key entirely.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}
