package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec     Record
	expires time.Time
}

// MemoryStore keeps records in process. Expired entries are dropped when
// they are next touched.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now}
}

func (s *MemoryStore) lookup(key string) (Record, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Record{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return Record{}, false
	}
	return e.rec, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lookup(key)
	return rec, ok, nil
}

func (s *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn func(Record, bool) Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lookup(key)
	rec = fn(rec, ok)
	s.entries[key] = memoryEntry{rec: rec, expires: s.now().Add(ttl)}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many entries are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
