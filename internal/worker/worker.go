// Package worker hands jobs to whatever removes the background: a remote
// HTTP worker, or an in-process pass-through for development.
package worker

import (
	"context"
	"sync"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/infra"
)

// Worker starts processing for a job that is already marked processing.
type Worker interface {
	// Available returns domain.ErrWorkerNotConfigured when no job can be
	// started at all.
	Available() error
	Start(ctx context.Context, job domain.Job) error
}

// Completer finishes a job in process by publishing its input as output.
type Completer interface {
	CompleteLoopback(ctx context.Context, jobID string) error
}

// LoopbackWorker completes jobs synchronously through its Completer.
type LoopbackWorker struct {
	mu        sync.RWMutex
	completer Completer
}

func NewLoopbackWorker() *LoopbackWorker {
	return &LoopbackWorker{}
}

// Bind attaches the engine that completes jobs.
func (w *LoopbackWorker) Bind(c Completer) {
	w.mu.Lock()
	w.completer = c
	w.mu.Unlock()
}

func (w *LoopbackWorker) Available() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.completer == nil {
		return domain.ErrWorkerNotConfigured
	}
	return nil
}

func (w *LoopbackWorker) Start(ctx context.Context, job domain.Job) error {
	w.mu.RLock()
	c := w.completer
	w.mu.RUnlock()
	if c == nil {
		return domain.ErrWorkerNotConfigured
	}
	return c.CompleteLoopback(ctx, job.ID)
}

// Unconfigured refuses every job.
type Unconfigured struct{}

func (Unconfigured) Available() error { return domain.ErrWorkerNotConfigured }

func (Unconfigured) Start(context.Context, domain.Job) error { return domain.ErrWorkerNotConfigured }

// FromConfig picks the worker implementation for this process.
func FromConfig(cfg *infra.Config, pub events.Publisher, logger infra.Logger) Worker {
	switch {
	case cfg.MockWorker:
		logger.Info().Msg("worker: using in-process loopback")
		return NewLoopbackWorker()
	case cfg.WorkerURL == "":
		logger.Warn().Msg("worker: WORKER_URL is empty and mock mode is off; jobs will fail")
		return Unconfigured{}
	}
	logger.Info().Str("worker_url", cfg.WorkerURL).Msg("worker: using remote worker")
	return NewRemoteWorker(RemoteConfig{
		BaseURL:  cfg.WorkerURL,
		AppURL:   cfg.AppURL,
		Secret:   cfg.WorkerSharedSecret,
		Attempts: cfg.WorkerDispatchAttempts,
		Timeout:  cfg.WorkerDispatchTimeout,
		RPS:      cfg.WorkerDispatchRPS,
	}, pub, logger)
}
