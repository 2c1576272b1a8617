package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bluecut/internal/domain"
	"bluecut/internal/events"
)

// StartRequest is the body posted to <WORKER_URL>/start.
type StartRequest struct {
	JobID        string `json:"jobId"`
	InputURL     string `json:"inputUrl"`
	CallbackURL  string `json:"callbackUrl"`
	OutputFormat string `json:"outputFormat"`
	Quality      int    `json:"quality"`
	WorkerSecret string `json:"workerSecret"`
}

// RemoteConfig configures RemoteWorker. Zero values get defaults.
type RemoteConfig struct {
	BaseURL  string
	AppURL   string
	Secret   string
	Attempts int
	Timeout  time.Duration
	// RPS paces outbound notifications across all jobs.
	RPS        float64
	Backoff    Backoff
	HTTPClient *http.Client
}

// RemoteWorker notifies an external worker asynchronously. Each job gets a
// bounded number of attempts; when all fail a DispatchFailed event is
// published and the job keeps its status.
type RemoteWorker struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	events  events.Publisher
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRemoteWorker(cfg RemoteConfig, pub events.Publisher, logger zerolog.Logger) *RemoteWorker {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Backoff == nil {
		cfg.Backoff = JitterBackoff{Initial: 500 * time.Millisecond, Max: 10 * time.Second}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if pub == nil {
		pub = events.Discard{}
	}
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteWorker{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		events:  pub,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *RemoteWorker) Available() error {
	if w.cfg.BaseURL == "" {
		return domain.ErrWorkerNotConfigured
	}
	return nil
}

// Request builds the start payload for job.
func (w *RemoteWorker) Request(job domain.Job) StartRequest {
	format := job.OutputFormat
	if format == "" {
		format = domain.OutputFormatPNG
	}
	return StartRequest{
		JobID:        job.ID,
		InputURL:     w.cfg.AppURL + "/api/jobs/" + job.ID + "/input",
		CallbackURL:  w.cfg.AppURL + "/api/jobs/callback",
		OutputFormat: string(format),
		Quality:      domain.ClampQuality(job.Quality),
		WorkerSecret: w.cfg.Secret,
	}
}

// Start returns immediately; delivery continues in the background.
func (w *RemoteWorker) Start(_ context.Context, job domain.Job) error {
	if err := w.Available(); err != nil {
		return err
	}
	req := w.Request(job)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.deliver(req, job.UserID)
	}()
	return nil
}

func (w *RemoteWorker) deliver(req StartRequest, userID string) {
	log := w.logger.With().Str("job_id", req.JobID).Logger()
	var lastErr error
attempts:
	for attempt := 1; attempt <= w.cfg.Attempts; attempt++ {
		if err := w.limiter.Wait(w.ctx); err != nil {
			lastErr = err
			break
		}
		err := w.send(req)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("worker: dispatched")
			return
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("worker: dispatch attempt failed")
		if attempt == w.cfg.Attempts {
			break
		}
		timer := time.NewTimer(w.cfg.Backoff.Delay(attempt))
		select {
		case <-w.ctx.Done():
			timer.Stop()
			lastErr = w.ctx.Err()
			break attempts
		case <-timer.C:
		}
	}
	log.Error().Err(lastErr).Str("user_id", userID).Msg("worker: dispatch failed")
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	w.events.Publish(events.Event{Type: events.DispatchFailed, JobID: req.JobID, UserID: userID, Error: msg})
}

func (w *RemoteWorker) send(req StartRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/start", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: worker responded %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// Close waits for in-flight deliveries until ctx expires, then abandons them.
func (w *RemoteWorker) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}
