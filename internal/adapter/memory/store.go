// Package memory provides an in-process domain.Store. It backs tests and
// local runs without PostgreSQL. Transactions are serialized by a single lock
// and rolled back from a snapshot when fn fails.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bluecut/internal/domain"
)

type state struct {
	users map[string]domain.User
	jobs  map[string]domain.Job
}

func (s *state) clone() *state {
	c := &state{
		users: make(map[string]domain.User, len(s.users)),
		jobs:  make(map[string]domain.Job, len(s.jobs)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	return c
}

// Store implements domain.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New returns an empty store. now may be nil.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		st:  &state{users: map[string]domain.User{}, jobs: map[string]domain.Job{}},
		now: now,
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	s.st.users[u.ID] = u
	s.mu.Unlock()
}

// User returns a copy of the stored user.
func (s *Store) User(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	return u, ok
}

// PutJob inserts or replaces a job without touching timestamps.
func (s *Store) PutJob(j domain.Job) {
	s.mu.Lock()
	s.st.jobs[j.ID] = j
	s.mu.Unlock()
}

// Job returns a copy of the stored job.
func (s *Store) Job(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.st.jobs[id]
	return j, ok
}

func (s *Store) Users() domain.UserRepository { return lockedUsers{s} }

func (s *Store) Jobs() domain.JobRepository { return lockedJobs{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(txRepos{s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type txRepos struct{ s *Store }

func (t txRepos) Users() domain.UserRepository { return users{t.s} }

func (t txRepos) Jobs() domain.JobRepository { return jobs{t.s} }

// users and jobs assume s.mu is held.
type users struct{ s *Store }

func (r users) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r users) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r users) AddCredits(_ context.Context, id string, delta int) (int, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.Credits+delta < 0 {
		return u.Credits, domain.ErrNotEnoughCredits
	}
	u.Credits += delta
	r.s.st.users[id] = u
	return u.Credits, nil
}

func (r users) GrantCredits(_ context.Context, id string, amount int) (int, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.Credits += amount
	u.CreditsTotal += amount
	r.s.st.users[id] = u
	return u.Credits, nil
}

type jobs struct{ s *Store }

func (r jobs) Insert(_ context.Context, job *domain.Job) error {
	if _, exists := r.s.st.jobs[job.ID]; exists {
		return domain.NewError(domain.ErrInvalidInput, "duplicate job id")
	}
	now := r.s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	r.s.st.jobs[job.ID] = *job
	return nil
}

func (r jobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	j, ok := r.s.st.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (r jobs) GetForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	return r.GetByID(ctx, id)
}

func (r jobs) Update(_ context.Context, job *domain.Job) error {
	if _, ok := r.s.st.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	job.UpdatedAt = r.s.now()
	r.s.st.jobs[job.ID] = *job
	return nil
}

func (r jobs) Delete(_ context.Context, id string) error {
	if _, ok := r.s.st.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.st.jobs, id)
	return nil
}

func (r jobs) CountCreatedBetween(_ context.Context, userID string, from, to time.Time) (int, error) {
	n := 0
	for _, j := range r.s.st.jobs {
		if j.UserID == userID && !j.CreatedAt.Before(from) && j.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r jobs) List(_ context.Context, f domain.JobFilter) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range r.s.st.jobs {
		if j.UserID != f.UserID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Query != "" && !strings.Contains(j.ID, f.Query) && !strings.Contains(j.Error, f.Query) && !strings.Contains(string(j.Status), f.Query) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r jobs) ListStale(_ context.Context, status domain.JobStatus, before time.Time, limit int) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range r.s.st.jobs {
		if j.Status == status && j.UpdatedAt.Before(before) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UpdatedAt.Before(out[b].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// lockedUsers and lockedJobs take s.mu around each call.
type lockedUsers struct{ s *Store }

func (r lockedUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return users{r.s}.GetByID(ctx, id)
}

func (r lockedUsers) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r lockedUsers) AddCredits(ctx context.Context, id string, delta int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return users{r.s}.AddCredits(ctx, id, delta)
}

func (r lockedUsers) GrantCredits(ctx context.Context, id string, amount int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return users{r.s}.GrantCredits(ctx, id, amount)
}

type lockedJobs struct{ s *Store }

func (r lockedJobs) Insert(ctx context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.Insert(ctx, job)
}

func (r lockedJobs) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.GetByID(ctx, id)
}

func (r lockedJobs) GetForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	return r.GetByID(ctx, id)
}

func (r lockedJobs) Update(ctx context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.Update(ctx, job)
}

func (r lockedJobs) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.Delete(ctx, id)
}

func (r lockedJobs) CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.CountCreatedBetween(ctx, userID, from, to)
}

func (r lockedJobs) List(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.List(ctx, f)
}

func (r lockedJobs) ListStale(ctx context.Context, status domain.JobStatus, before time.Time, limit int) ([]domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return jobs{r.s}.ListStale(ctx, status, before, limit)
}

var _ domain.Store = (*Store)(nil)
