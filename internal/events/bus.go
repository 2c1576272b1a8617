// Package events fans job lifecycle notifications out to in-process
// subscribers such as the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type names an event.
type Type string

const (
	JobCreated      Type = "job.created"
	JobProcessing   Type = "job.processing"
	JobDone         Type = "job.done"
	JobFailed       Type = "job.failed"
	CreditsRefunded Type = "credits.refunded"
	// DispatchFailed means the worker could not be notified. The job itself
	// is left as it was.
	DispatchFailed Type = "dispatch.failed"
)

// Event is one notification.
type Event struct {
	Type    Type      `json:"type"`
	JobID   string    `json:"jobId"`
	UserID  string    `json:"userId"`
	Status  string    `json:"status,omitempty"`
	Credits int       `json:"credits,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(e Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus delivers events to subscribers without ever blocking the publisher;
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	logger zerolog.Logger
}

// NewBus returns an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{subs: make(map[int]*subscriber), logger: logger}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, s := range b.subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.logger.Warn().Int("subscriber", id).Str("event", string(e.Type)).Str("job_id", e.JobID).Msg("events: subscriber buffer full, dropping")
		}
	}
}

// Subscribe registers a subscriber. filter may be nil. The returned cancel
// func closes the channel and is safe to call more than once.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s := &subscriber{ch: make(chan Event, buffer), filter: filter}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ForUser matches events that belong to userID.
func ForUser(userID string) func(Event) bool {
	return func(e Event) bool { return e.UserID == userID }
}
