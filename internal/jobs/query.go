package jobs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"bluecut/internal/domain"
	"bluecut/internal/media"
)

// ListLimit caps list and export results.
const ListLimit = 50

var exportHeader = []string{"id", "status", "createdAt", "updatedAt", "creditsCost", "outputMime", "outputSize", "inputOriginalName", "error"}

// Get returns the caller's job. Jobs owned by someone else read as missing.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns the caller's newest jobs. An unknown status is ignored.
func (s *Service) List(ctx context.Context, userID, query, status string) ([]domain.Job, error) {
	f := domain.JobFilter{UserID: userID, Query: query, Limit: ListLimit}
	if st, ok := domain.ParseJobStatus(status); ok {
		f.Status = st
	}
	return s.store.Jobs().List(ctx, f)
}

// Export writes the List result as CSV.
func (s *Service) Export(ctx context.Context, userID, query, status string, w io.Writer) error {
	list, err := s.List(ctx, userID, query, status)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, j := range list {
		record := []string{
			j.ID,
			string(j.Status),
			j.CreatedAt.UTC().Format(time.RFC3339),
			j.UpdatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(j.CreditsCost),
			j.OutputMime,
			optionalSize(j.OutputSize),
			j.InputOriginalName,
			j.Error,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalSize(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// Result is a finished job's output.
type Result struct {
	Data     []byte
	Mime     string
	Filename string
}

// Download returns the output of a done job.
func (s *Service) Download(ctx context.Context, userID, jobID string) (*Result, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusDone || job.OutputKey == "" {
		return nil, domain.NewError(domain.ErrNotReady, "Result not ready.")
	}
	data, err := s.files.Read(ctx, job.OutputKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrNotFound, "Result file missing.")
		}
		return nil, err
	}
	mime := job.OutputMime
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Result{
		Data:     data,
		Mime:     mime,
		Filename: fmt.Sprintf("result-%s%s", job.ID, media.Extension(job.OutputMime)),
	}, nil
}

// Input returns a job's uploaded file. It is served to workers, so it does
// not check ownership.
func (s *Service) Input(ctx context.Context, jobID string) (*Result, error) {
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.HasInput() {
		return nil, domain.ErrNotFound
	}
	data, err := s.files.Read(ctx, job.InputKey)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidKey) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	name := job.InputOriginalName
	if name == "" {
		name = "input-" + job.ID + media.Extension(job.InputMime)
	}
	return &Result{Data: data, Mime: job.InputMime, Filename: name}, nil
}
