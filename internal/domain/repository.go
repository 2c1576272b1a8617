package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	// GetForUpdate reads the user and locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*User, error)
	// AddCredits applies delta only if the balance stays non-negative and
	// returns the new balance. A refused update yields ErrNotEnoughCredits.
	AddCredits(ctx context.Context, id string, delta int) (int, error)
	// GrantCredits adds amount to both the balance and the lifetime total.
	GrantCredits(ctx context.Context, id string, amount int) (int, error)
}

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Insert(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	GetForUpdate(ctx context.Context, id string) (*Job, error)
	// Update writes every mutable column and refreshes job.UpdatedAt.
	Update(ctx context.Context, job *Job) error
	Delete(ctx context.Context, id string) error
	CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)
	// ListStale returns jobs in status whose last update is older than before.
	ListStale(ctx context.Context, status JobStatus, before time.Time, limit int) ([]Job, error)
}

// Repositories groups the repositories that share one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Jobs() JobRepository
}

// Store is the persistence boundary of the job engine.
type Store interface {
	Repositories
	// WithinTx runs fn in a single transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
