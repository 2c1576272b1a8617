package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bluecut/internal/domain"
	"bluecut/internal/infra"
	"bluecut/internal/sqlinline"
)

const defaultListLimit = 50

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// Insert stores a new job and fills in its timestamps.
func (r *JobRepositoryPG) Insert(ctx context.Context, job *domain.Job) error {
	err := r.db.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		string(job.Status),
		job.CreditsCost,
		job.InputKey,
		job.InputMime,
		job.InputSize,
		job.InputOriginalName,
		string(job.OutputFormat),
		job.Quality,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	return r.getOne(ctx, sqlinline.QSelectJobByID, id)
}

func (r *JobRepositoryPG) GetForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	return r.getOne(ctx, sqlinline.QSelectJobByIDForUpdate, id)
}

func (r *JobRepositoryPG) getOne(ctx context.Context, query, id string) (*domain.Job, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	err := r.db.QueryRow(ctx, sqlinline.QUpdateJob,
		job.ID,
		string(job.Status),
		job.Error,
		job.InputKey,
		job.InputMime,
		job.InputSize,
		job.InputOriginalName,
		job.OutputKey,
		job.OutputMime,
		job.OutputSize,
	).Scan(&job.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepositoryPG) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteJob, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var n int
	if err := r.db.QueryRow(ctx, sqlinline.QCountJobsCreatedBetween, userID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func (r *JobRepositoryPG) List(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	if !validID(f.UserID) {
		return nil, nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx, sqlinline.QListJobs, f.UserID, string(f.Status), f.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

func (r *JobRepositoryPG) ListStale(ctx context.Context, status domain.JobStatus, before time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(ctx, sqlinline.QListStaleJobs, string(status), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
		format string
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.CreditsCost,
		&job.Error,
		&job.InputKey,
		&job.InputMime,
		&job.InputSize,
		&job.InputOriginalName,
		&job.OutputKey,
		&job.OutputMime,
		&job.OutputSize,
		&format,
		&job.Quality,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.OutputFormat = domain.NormalizeOutputFormat(format)
	return &job, nil
}
