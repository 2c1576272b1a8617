package repo

import (
	"context"

	"bluecut/internal/domain"
	"bluecut/internal/infra"
)

// Store implements domain.Store on top of the audited SQL runner.
type Store struct {
	db infra.TxExecutor
}

// NewStore wraps db, normally an *infra.SQLRunner.
func NewStore(db infra.TxExecutor) *Store {
	return &Store{db: db}
}

func (s *Store) Users() domain.UserRepository { return &UserRepositoryPG{db: s.db} }

func (s *Store) Jobs() domain.JobRepository { return &JobRepositoryPG{db: s.db} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Repositories) error) error {
	return s.db.WithinTx(ctx, func(tx infra.SQLExecutor) error {
		return fn(txRepositories{db: tx})
	})
}

type txRepositories struct {
	db infra.SQLExecutor
}

func (t txRepositories) Users() domain.UserRepository { return &UserRepositoryPG{db: t.db} }

func (t txRepositories) Jobs() domain.JobRepository { return &JobRepositoryPG{db: t.db} }

var _ domain.Store = (*Store)(nil)
