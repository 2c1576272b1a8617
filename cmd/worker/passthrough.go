package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bluecut/internal/media"
	"bluecut/internal/worker"
)

const (
	queueSize        = 64
	callbackAttempts = 3
)

type passthroughConfig struct {
	Secret      string
	Concurrency int
	MaxInput    int64
	HTTPClient  *http.Client
	Backoff     worker.Backoff
}

type callbackBody struct {
	JobID        string `json:"jobId"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
	OutputBase64 string `json:"outputBase64,omitempty"`
	OutputMime   string `json:"outputMime,omitempty"`
}

type passthrough struct {
	cfg    passthroughConfig
	queue  chan worker.StartRequest
	logger zerolog.Logger
}

func newPassthrough(cfg passthroughConfig, logger zerolog.Logger) *passthrough {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Backoff == nil {
		cfg.Backoff = worker.JitterBackoff{Initial: 500 * time.Millisecond, Max: 5 * time.Second}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &passthrough{cfg: cfg, queue: make(chan worker.StartRequest, queueSize), logger: logger}
}

func (p *passthrough) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/start", p.start)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *passthrough) start(w http.ResponseWriter, r *http.Request) {
	var req worker.StartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil || req.JobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid start request"})
		return
	}
	if p.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(req.WorkerSecret), []byte(p.cfg.Secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "Unauthorized"})
		return
	}
	select {
	case p.queue <- req:
		p.logger.Info().Str("job_id", req.JobID).Msg("worker: job accepted")
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "queue full"})
	}
}

// run drains the queue with Concurrency goroutines until ctx is done.
func (p *passthrough) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case req := <-p.queue:
					p.process(ctx, req)
				}
			}
		})
	}
	return g.Wait()
}

func (p *passthrough) process(ctx context.Context, req worker.StartRequest) {
	log := p.logger.With().Str("job_id", req.JobID).Logger()
	body := callbackBody{JobID: req.JobID}

	data, err := p.fetchInput(ctx, req.InputURL)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("worker: input fetch failed")
		body.Error = "Could not fetch input: " + err.Error()
	case media.Sniff(data) == "":
		body.Error = "Input is not a supported image."
	default:
		body.OK = true
		body.OutputBase64 = base64.StdEncoding.EncodeToString(data)
		body.OutputMime = media.Sniff(data)
	}

	if err := p.callback(ctx, req.CallbackURL, body); err != nil {
		log.Error().Err(err).Msg("worker: callback failed")
		return
	}
	log.Info().Bool("ok", body.OK).Msg("worker: job reported")
}

func (p *passthrough) fetchInput(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Worker-Secret", p.cfg.Secret)
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("input returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxInput+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.cfg.MaxInput {
		return nil, fmt.Errorf("input larger than %d bytes", p.cfg.MaxInput)
	}
	return data, nil
}

func (p *passthrough) callback(ctx context.Context, url string, body callbackBody) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= callbackAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Backoff.Delay(attempt - 1)):
			}
		}
		lastErr = p.postCallback(ctx, url, payload)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (p *passthrough) postCallback(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Secret", p.cfg.Secret)
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	default:
		// 4xx will not change on retry.
		return nil
	}
}
