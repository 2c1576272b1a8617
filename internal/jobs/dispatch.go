package jobs

import (
	"context"
	"errors"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/ledger"
)

const (
	workerNotConfiguredMessage = "Worker not configured."
	workerStartFailedMessage   = "Processing failed."
)

// dispatch moves a queued job to processing and starts the worker. With no
// worker available, or when the worker cannot start, the job is failed and
// refunded. The caller's cancellation does not reach the worker.
func (s *Service) dispatch(ctx context.Context, job *domain.Job) error {
	ctx = context.WithoutCancel(ctx)
	log := s.jobLogger(job)
	if err := s.worker.Available(); err != nil {
		log.Warn().Err(err).Msg("jobs: no worker available")
		if _, ferr := s.fail(ctx, job.ID, workerNotConfiguredMessage, nil); ferr != nil {
			return ferr
		}
		return err
	}

	if job.Status == domain.JobStatusQueued {
		err := s.store.WithinTx(ctx, func(tx domain.Repositories) error {
			j, err := tx.Jobs().GetForUpdate(ctx, job.ID)
			if err != nil {
				return err
			}
			if j.Status != domain.JobStatusQueued {
				*job = *j
				return nil
			}
			j.Status = domain.JobStatusProcessing
			if err := tx.Jobs().Update(ctx, j); err != nil {
				return err
			}
			*job = *j
			return nil
		})
		if err != nil {
			return err
		}
		s.publish(events.JobProcessing, job)
	}

	if err := s.worker.Start(ctx, *job); err != nil {
		log.Warn().Err(err).Msg("jobs: worker start failed")
		s.abandon(ctx, job, workerStartFailedMessage)
		return err
	}
	log.Debug().Msg("jobs: job dispatched")
	return nil
}

// Retry charges a failed job again and sends it back to the worker.
func (s *Service) Retry(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return nil, domain.NewError(domain.ErrNotRetryable, "Only failed jobs can be retried.")
	}
	if !job.HasInput() {
		return nil, domain.NewError(domain.ErrInputMissing, "Input file missing.")
	}
	present, err := s.files.Exists(ctx, job.InputKey)
	if err != nil && !errors.Is(err, domain.ErrInvalidKey) {
		return nil, err
	}
	if !present {
		return nil, domain.NewError(domain.ErrInputMissing, "Input file missing.")
	}
	if err := s.worker.Available(); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if job.CreditsCost > 0 && user.Credits < job.CreditsCost {
		return nil, &domain.CreditsError{Required: job.CreditsCost}
	}

	err = s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		j, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if j.Status != domain.JobStatusFailed {
			return domain.NewError(domain.ErrNotRetryable, "Only failed jobs can be retried.")
		}
		if j.CreditsCost > 0 {
			if _, err := ledger.Debit(ctx, tx.Users(), j.UserID, j.CreditsCost); err != nil {
				if errors.Is(err, domain.ErrNotEnoughCredits) {
					return &domain.CreditsError{Required: j.CreditsCost}
				}
				return err
			}
		}
		j.Status = domain.JobStatusProcessing
		j.Error = ""
		j.ClearOutput()
		if err := tx.Jobs().Update(ctx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	log := s.jobLogger(job)
	log.Info().Int("credits_cost", job.CreditsCost).Msg("jobs: job retried")
	s.publish(events.JobProcessing, job)

	if err := s.worker.Start(ctx, *job); err != nil {
		log.Warn().Err(err).Msg("jobs: worker start failed on retry")
		s.abandon(ctx, job, workerStartFailedMessage)
		if errors.Is(err, domain.ErrInputMissing) {
			return nil, domain.NewError(domain.ErrInputMissing, "Input file missing.")
		}
		return nil, err
	}
	return s.store.Jobs().GetByID(ctx, jobID)
}
