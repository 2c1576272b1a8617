// Package jobs runs the background-removal job lifecycle: metered creation,
// dispatch to a worker, retries, callbacks and compensating refunds.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/ledger"
	"bluecut/internal/quota"
	"bluecut/internal/storage"
	"bluecut/internal/worker"
)

// Config holds the metering and size limits.
type Config struct {
	StandardCost    int
	MonthlyIncluded int
	MaxUploadBytes  int64
	MaxOutputBytes  int64
	Location        *time.Location
}

// Service is the job engine. It is safe for concurrent use; the store
// transaction is the only serialization point.
type Service struct {
	store  domain.Store
	files  *storage.Gateway
	worker worker.Worker
	quota  *quota.Calculator
	events events.Publisher
	logger zerolog.Logger
	cfg    Config
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the engine. A loopback worker is bound to the new
// service so it can complete jobs in process.
func NewService(store domain.Store, files *storage.Gateway, w worker.Worker, pub events.Publisher, logger zerolog.Logger, cfg Config, opts ...Option) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if w == nil {
		w = worker.Unconfigured{}
	}
	s := &Service{
		store:  store,
		files:  files,
		worker: w,
		quota: &quota.Calculator{
			Included:     cfg.MonthlyIncluded,
			StandardCost: cfg.StandardCost,
			Location:     cfg.Location,
		},
		events: pub,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if lb, ok := w.(*worker.LoopbackWorker); ok {
		lb.Bind(s)
	}
	return s
}

// Config returns the limits the service was built with.
func (s *Service) Config() Config { return s.cfg }

// MonthlyUsage reports the caller's jobs this month and the free allowance.
func (s *Service) MonthlyUsage(ctx context.Context, userID string) (used, included int, err error) {
	used, err = s.quota.MonthlyUsed(ctx, s.store.Jobs(), userID, s.now())
	return used, s.cfg.MonthlyIncluded, err
}

func (s *Service) publish(typ events.Type, job *domain.Job) {
	s.events.Publish(events.Event{
		Type:   typ,
		JobID:  job.ID,
		UserID: job.UserID,
		Status: string(job.Status),
		Error:  job.Error,
	})
}

func (s *Service) jobLogger(job *domain.Job) zerolog.Logger {
	return s.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
}

// fail moves a non-terminal job to failed and refunds its cost in the same
// transaction. Terminal jobs are left alone, so repeated calls refund once.
// keep, when set, can veto the transition after the row is locked.
func (s *Service) fail(ctx context.Context, jobID, message string, keep func(*domain.Job) bool) (bool, error) {
	var (
		job     *domain.Job
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		j, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		job = j
		if !domain.CanTransition(j.Status, domain.JobStatusFailed) {
			return nil
		}
		if keep != nil && keep(j) {
			return nil
		}
		j.Status = domain.JobStatusFailed
		j.Error = message
		if err := tx.Jobs().Update(ctx, j); err != nil {
			return err
		}
		if j.CreditsCost > 0 {
			if _, err := ledger.Credit(ctx, tx.Users(), j.UserID, j.CreditsCost); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		ev := s.logger.Error().Err(err).Str("job_id", jobID)
		if job != nil {
			ev = ev.Str("user_id", job.UserID).Int("credits", job.CreditsCost)
		}
		ev.Msg("jobs: failed to mark job failed and refund")
		return false, fmt.Errorf("fail job: %w", err)
	}
	if !changed {
		return false, nil
	}
	log := s.jobLogger(job)
	log.Info().Str("error", message).Int("refunded_credits", job.CreditsCost).Msg("jobs: job failed")
	s.publish(events.JobFailed, job)
	if job.CreditsCost > 0 {
		s.events.Publish(events.Event{Type: events.CreditsRefunded, JobID: job.ID, UserID: job.UserID, Credits: job.CreditsCost})
	}
	return true, nil
}

// complete stores the output and marks the job done unless it already
// reached a terminal state. The blob is written under the job's row lock, so
// of two concurrent successes only the first writes.
func (s *Service) complete(ctx context.Context, jobID string, data []byte, mime string) error {
	var (
		job     *domain.Job
		out     storage.StoredOutput
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		j, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		job = j
		if !domain.CanTransition(j.Status, domain.JobStatusDone) {
			return nil
		}
		out, err = s.files.WriteOutput(ctx, jobID, mime, data)
		if err != nil {
			return err
		}
		j.ClearOutput()
		j.Status = domain.JobStatusDone
		j.OutputKey = out.Key
		j.OutputMime = out.Mime
		j.OutputSize = out.Size
		changed = true
		return tx.Jobs().Update(ctx, j)
	})
	if err != nil {
		if out.Key != "" {
			_ = s.files.Remove(context.WithoutCancel(ctx), out.Key)
		}
		return fmt.Errorf("complete job: %w", err)
	}
	if changed {
		log := s.jobLogger(job)
		log.Info().Str("output_mime", out.Mime).Int64("output_size", out.Size).Msg("jobs: job done")
		s.publish(events.JobDone, job)
	}
	return nil
}

// abandon fails and refunds a job nothing will finish. It runs detached from
// the request so a client disconnect cannot leave the job charged.
func (s *Service) abandon(ctx context.Context, job *domain.Job, message string) {
	if _, err := s.fail(context.WithoutCancel(ctx), job.ID, message, nil); err != nil {
		log := s.jobLogger(job)
		log.Error().Err(err).Int("credits", job.CreditsCost).Msg("jobs: abandon failed, manual refund required")
	}
}
