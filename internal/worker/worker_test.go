package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/infra"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) snapshot() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func TestFromConfig(t *testing.T) {
	logger := zerolog.Nop()
	if _, ok := FromConfig(&infra.Config{MockWorker: true}, nil, logger).(*LoopbackWorker); !ok {
		t.Fatalf("mock config did not yield loopback worker")
	}
	if w := FromConfig(&infra.Config{}, nil, logger); !errors.Is(w.Available(), domain.ErrWorkerNotConfigured) {
		t.Fatalf("empty config Available() = %v", w.Available())
	}
	if _, ok := FromConfig(&infra.Config{WorkerURL: "http://worker"}, nil, logger).(*RemoteWorker); !ok {
		t.Fatalf("worker url did not yield remote worker")
	}
}

type completerFunc func(ctx context.Context, jobID string) error

func (f completerFunc) CompleteLoopback(ctx context.Context, jobID string) error { return f(ctx, jobID) }

func TestLoopbackWorker(t *testing.T) {
	w := NewLoopbackWorker()
	if !errors.Is(w.Available(), domain.ErrWorkerNotConfigured) {
		t.Fatalf("unbound loopback reported available")
	}
	var got string
	w.Bind(completerFunc(func(_ context.Context, jobID string) error {
		got = jobID
		return nil
	}))
	if err := w.Start(context.Background(), domain.Job{ID: "job-7"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got != "job-7" {
		t.Fatalf("completer saw %q", got)
	}
}

func TestRemoteWorkerPostsStartRequest(t *testing.T) {
	received := make(chan StartRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- req
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub := &recordingPublisher{}
	w := NewRemoteWorker(RemoteConfig{
		BaseURL: srv.URL + "/",
		AppURL:  "https://app.example.com/",
		Secret:  "s3cret",
		Backoff: NoBackoff{},
	}, pub, zerolog.Nop())

	job := domain.Job{ID: "job-1", UserID: "u1", OutputFormat: domain.OutputFormatWEBP, Quality: 80}
	if err := w.Start(context.Background(), job); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case req := <-received:
		want := StartRequest{
			JobID:        "job-1",
			InputURL:     "https://app.example.com/api/jobs/job-1/input",
			CallbackURL:  "https://app.example.com/api/jobs/callback",
			OutputFormat: "WEBP",
			Quality:      80,
			WorkerSecret: "s3cret",
		}
		if req != want {
			t.Fatalf("request = %+v, want %+v", req, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("worker was never called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if evs := pub.snapshot(); len(evs) != 0 {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestRemoteWorkerRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := &recordingPublisher{}
	w := NewRemoteWorker(RemoteConfig{BaseURL: srv.URL, Attempts: 3, Backoff: NoBackoff{}}, pub, zerolog.Nop())
	_ = w.Start(context.Background(), domain.Job{ID: "job-2", UserID: "u1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if evs := pub.snapshot(); len(evs) != 0 {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestRemoteWorkerPublishesDispatchFailed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pub := &recordingPublisher{}
	w := NewRemoteWorker(RemoteConfig{BaseURL: srv.URL, Attempts: 2, Backoff: NoBackoff{}}, pub, zerolog.Nop())
	_ = w.Start(context.Background(), domain.Job{ID: "job-3", UserID: "u9"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	evs := pub.snapshot()
	if len(evs) != 1 || evs[0].Type != events.DispatchFailed || evs[0].JobID != "job-3" || evs[0].UserID != "u9" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestJitterBackoffBounded(t *testing.T) {
	b := JitterBackoff{Initial: 100 * time.Millisecond, Max: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		d := b.Delay(attempt)
		if d < 0 || d > time.Second {
			t.Fatalf("Delay(%d) = %v out of bounds", attempt, d)
		}
	}
}
