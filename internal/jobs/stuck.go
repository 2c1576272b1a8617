package jobs

import (
	"context"
	"errors"
	"time"

	"bluecut/internal/domain"
)

const (
	stuckMessage   = "Processing timed out."
	stuckBatchSize = 100
)

// FailStuck fails and refunds processing jobs not touched for olderThan.
// It returns how many jobs it failed.
func (s *Service) FailStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	before := s.now().Add(-olderThan)
	stale, err := s.store.Jobs().ListStale(ctx, domain.JobStatusProcessing, before, stuckBatchSize)
	if err != nil {
		return 0, err
	}
	// A job may have been completed or retried since the list was read.
	touched := func(j *domain.Job) bool { return !j.UpdatedAt.Before(before) }

	n := 0
	var errs []error
	for _, j := range stale {
		changed, err := s.fail(ctx, j.ID, stuckMessage, touched)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			n++
		}
	}
	if n > 0 {
		s.logger.Warn().Int("count", n).Dur("older_than", olderThan).Msg("jobs: failed stuck jobs")
	}
	return n, errors.Join(errs...)
}

// WatchStuck runs FailStuck every interval until ctx is done.
func (s *Service) WatchStuck(ctx context.Context, interval, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.FailStuck(ctx, olderThan); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("jobs: stuck job sweep failed")
			}
		}
	}
}
