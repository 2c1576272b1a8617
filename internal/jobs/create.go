package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/ledger"
	"bluecut/internal/media"
	"bluecut/internal/quota"
	"bluecut/internal/storage"
)

// CreateInput is one upload.
type CreateInput struct {
	UserID       string
	Data         []byte
	DeclaredMime string
	OriginalName string
}

func (s *Service) validateUpload(in CreateInput) (string, error) {
	if len(in.Data) == 0 {
		return "", domain.NewError(domain.ErrInvalidInput, "Missing file.")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return "", domain.NewError(domain.ErrPayloadTooLarge, fmt.Sprintf("File too large (max %d MB).", s.cfg.MaxUploadBytes>>20))
	}
	if !media.Accepted(in.DeclaredMime) {
		return "", domain.NewError(domain.ErrInvalidInput, "Unsupported file type. Use PNG, JPG or WEBP.")
	}
	sniffed := media.Sniff(in.Data)
	if !media.Accepted(sniffed) {
		return "", domain.NewError(domain.ErrInvalidInput, "File content is not a PNG, JPG or WEBP image.")
	}
	return sniffed, nil
}

func creditsError(d quota.Decision) error {
	return &domain.CreditsError{Required: d.Cost, Included: d.Included, Used: d.Used, Monthly: true}
}

// Create meters and persists a new job, stores its input and hands it to
// the worker. The returned job reflects the state after dispatch.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Job, error) {
	mime, err := s.validateUpload(in)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	now := s.now()
	log := s.logger.With().Str("user_id", user.ID).Logger()

	// Advisory: spares a transaction for the common rejection.
	pre, err := s.quota.Decide(ctx, s.store.Jobs(), user.ID, now)
	if err != nil {
		return nil, err
	}
	if pre.Cost > 0 && user.Credits < pre.Cost {
		log.Info().Int("credits", user.Credits).Int("credits_required", pre.Cost).Int("monthly_used", pre.Used).Msg("jobs: create blocked, not enough credits")
		return nil, creditsError(pre)
	}

	job := &domain.Job{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Status:            domain.JobStatusQueued,
		InputKey:          domain.InputKeyPending,
		InputMime:         mime,
		InputSize:         int64(len(in.Data)),
		InputOriginalName: in.OriginalName,
	}

	err = s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		locked, err := tx.Users().GetForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		// Recounted under the user lock so concurrent creates agree on the cost.
		d, err := s.quota.Decide(ctx, tx.Jobs(), user.ID, now)
		if err != nil {
			return err
		}
		if d.Cost > 0 {
			if _, err := ledger.Debit(ctx, tx.Users(), user.ID, d.Cost); err != nil {
				if errors.Is(err, domain.ErrNotEnoughCredits) {
					return creditsError(d)
				}
				return err
			}
		}
		job.CreditsCost = d.Cost
		job.OutputFormat = locked.OutputFormat
		if job.OutputFormat == "" {
			job.OutputFormat = domain.OutputFormatPNG
		}
		job.Quality = domain.ClampQuality(locked.DefaultQuality)
		return tx.Jobs().Insert(ctx, job)
	})
	if err != nil {
		var ce *domain.CreditsError
		if errors.As(err, &ce) {
			log.Info().Int("credits_required", ce.Required).Int("monthly_used", ce.Used).Msg("jobs: create blocked in transaction, not enough credits")
		}
		return nil, err
	}

	// The debit is committed; from here on the request's cancellation must
	// not interrupt the steps that store, dispatch or refund the job.
	ctx = context.WithoutCancel(ctx)
	log = log.With().Str("job_id", job.ID).Logger()
	log.Info().Int("credits_cost", job.CreditsCost).Msg("jobs: job created")
	s.publish(events.JobCreated, job)

	if err := s.persistInput(ctx, job, in); err != nil {
		log.Error().Err(err).Msg("jobs: persisting input failed")
		s.undoCreate(ctx, job, err)
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.dispatch(ctx, job); err != nil {
		return nil, err
	}
	latest, err := s.store.Jobs().GetByID(ctx, job.ID)
	if err != nil {
		return job, nil
	}
	return latest, nil
}

func (s *Service) persistInput(ctx context.Context, job *domain.Job, in CreateInput) error {
	stored, err := s.files.WriteInput(ctx, storage.Input{
		JobID:        job.ID,
		Data:         in.Data,
		Mime:         job.InputMime,
		OriginalName: in.OriginalName,
	})
	if err != nil {
		return err
	}
	job.InputKey = stored.Key
	job.InputMime = stored.Mime
	job.InputSize = stored.Size
	job.InputOriginalName = stored.OriginalName
	return s.store.Jobs().Update(ctx, job)
}

// undoCreate deletes the job and refunds its cost. When the delete cannot
// happen the job is failed instead, which refunds as well.
func (s *Service) undoCreate(ctx context.Context, job *domain.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	log := s.jobLogger(job)
	err := s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		if err := tx.Jobs().Delete(ctx, job.ID); err != nil {
			return err
		}
		if job.CreditsCost > 0 {
			if _, err := ledger.Credit(ctx, tx.Users(), job.UserID, job.CreditsCost); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		_ = s.files.Remove(ctx, storage.InputKey(job.ID, job.InputMime))
		log.Warn().Int("refunded_credits", job.CreditsCost).Msg("jobs: create rolled back")
		if job.CreditsCost > 0 {
			s.events.Publish(events.Event{Type: events.CreditsRefunded, JobID: job.ID, UserID: job.UserID, Credits: job.CreditsCost})
		}
		return
	}
	log.Error().Err(err).Int("credits", job.CreditsCost).Msg("jobs: delete after failed create failed, marking job failed")
	if _, ferr := s.fail(ctx, job.ID, cause.Error(), nil); ferr != nil {
		log.Error().Err(ferr).Int("credits", job.CreditsCost).Msg("jobs: compensation failed, manual refund required")
	}
}
