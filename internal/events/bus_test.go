package events

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestBusFiltersByUser(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(4, ForUser("u1"))
	defer cancel()

	bus.Publish(Event{Type: JobCreated, JobID: "j2", UserID: "u2"})
	bus.Publish(Event{Type: JobDone, JobID: "j1", UserID: "u1"})

	select {
	case e := <-ch:
		if e.JobID != "j1" || e.Type != JobDone {
			t.Fatalf("got %+v", e)
		}
		if e.At.IsZero() {
			t.Fatalf("timestamp not set")
		}
	default:
		t.Fatalf("no event delivered")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event %+v", e)
	default:
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(1, nil)
	defer cancel()

	bus.Publish(Event{Type: JobCreated, JobID: "a"})
	bus.Publish(Event{Type: JobCreated, JobID: "b"})

	if e := <-ch; e.JobID != "a" {
		t.Fatalf("first event = %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("overflow event delivered: %+v", e)
	default:
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(1, nil)
	if bus.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d", bus.Subscribers())
	}
	cancel()
	cancel()
	if bus.Subscribers() != 0 {
		t.Fatalf("Subscribers after cancel = %d", bus.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed")
	}
	bus.Publish(Event{Type: JobDone})
}
