package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bluecut/internal/domain"
	"bluecut/internal/infra"
	"bluecut/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository.
type UserRepositoryPG struct {
	db infra.SQLExecutor
}

// NewUserRepository creates a user repository backed by PostgreSQL.
func NewUserRepository(db infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{db: db}
}

func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, sqlinline.QSelectUserByID, id)
}

func (r *UserRepositoryPG) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, sqlinline.QSelectUserByIDForUpdate, id)
}

func (r *UserRepositoryPG) scanUser(ctx context.Context, query, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	var (
		user   domain.User
		format string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Credits,
		&user.CreditsTotal,
		&format,
		&user.DefaultQuality,
		&user.CreatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	user.OutputFormat = domain.NormalizeOutputFormat(format)
	return &user, nil
}

// AddCredits relies on the guarded update: no returned row means the
// balance would have gone negative.
func (r *UserRepositoryPG) AddCredits(ctx context.Context, id string, delta int) (int, error) {
	if !validID(id) {
		return 0, domain.ErrNotFound
	}
	var balance int
	if err := r.db.QueryRow(ctx, sqlinline.QAddUserCredits, id, delta).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotEnoughCredits
		}
		return 0, fmt.Errorf("update credits: %w", err)
	}
	return balance, nil
}

func (r *UserRepositoryPG) GrantCredits(ctx context.Context, id string, amount int) (int, error) {
	if !validID(id) {
		return 0, domain.ErrNotFound
	}
	var balance int
	if err := r.db.QueryRow(ctx, sqlinline.QGrantUserCredits, id, amount).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	return balance, nil
}

// validID keeps ids Postgres would refuse to cast out of uuid-typed queries;
// such rows cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IDByEmail resolves an account for operator tooling.
func (r *UserRepositoryPG) IDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	if err := r.db.QueryRow(ctx, sqlinline.QSelectUserIDByEmail, email).Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("select user by email: %w", err)
	}
	return id, nil
}
