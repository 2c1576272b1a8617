package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bluecut/internal/domain"
	"bluecut/internal/infra"
	"bluecut/internal/sqlinline"
)

type simpleRow struct {
	values []any
	err    error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *int64:
			*d = v.(int64)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", dest[i])
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(r.data[r.idx-1], dest) }

type call struct {
	query string
	args  []any
}

type fakeExecutor struct {
	calls    []call
	row      func(query string, args []any) pgx.Row
	rows     [][]any
	affected int64
	txCount  int
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{query, args})
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", f.affected)), nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{query, args})
	return f.row(query, args)
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, call{query, args})
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeExecutor) WithinTx(_ context.Context, fn func(tx infra.SQLExecutor) error) error {
	f.txCount++
	return fn(f)
}

var created = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

const (
	userID  = "0b6f2c1e-4d8a-4c55-9a0e-3f1b7d2c9e41"
	jobID1  = "5e2a9c44-1b7f-4f0d-8c3a-6d9e0b1a2f37"
	jobID2  = "a8c1d3e5-6f70-4812-9b3c-4d5e6f708192"
	missing = "f0e1d2c3-b4a5-4968-8776-655443322110"
)

func jobValues(id, status string) []any {
	return []any{
		id, userID, status, 50, "",
		"inputs/" + id + ".png", "image/png", int64(2048), "cat.png",
		"", "", int64(0),
		"webp", 80, created, created,
	}
}

func TestUserRepositoryMapsNoRows(t *testing.T) {
	db := &fakeExecutor{row: func(string, []any) pgx.Row { return simpleRow{err: pgx.ErrNoRows} }}
	users := NewUserRepository(db)

	if _, err := users.GetByID(context.Background(), missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
	if _, err := users.AddCredits(context.Background(), userID, -50); !errors.Is(err, domain.ErrNotEnoughCredits) {
		t.Fatalf("AddCredits err = %v, want ErrNotEnoughCredits", err)
	}
}

func TestUserRepositoryGetForUpdateLocks(t *testing.T) {
	db := &fakeExecutor{row: func(string, []any) pgx.Row {
		return simpleRow{values: []any{userID, "a@example.com", 120, 500, "jpg", 75, created}}
	}}
	u, err := NewUserRepository(db).GetForUpdate(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if u.Credits != 120 || u.OutputFormat != domain.OutputFormatJPG || u.DefaultQuality != 75 {
		t.Fatalf("user = %+v", u)
	}
	if db.calls[0].query != sqlinline.QSelectUserByIDForUpdate {
		t.Fatalf("GetForUpdate used the wrong query")
	}
	if !strings.Contains(sqlinline.QSelectUserByIDForUpdate, "for update") {
		t.Fatalf("lock query does not lock")
	}
}

func TestJobRepositoryRoundTrip(t *testing.T) {
	db := &fakeExecutor{row: func(query string, _ []any) pgx.Row {
		switch query {
		case sqlinline.QInsertJob:
			return simpleRow{values: []any{created, created}}
		case sqlinline.QSelectJobByID:
			return simpleRow{values: jobValues(jobID1, "queued")}
		case sqlinline.QUpdateJob:
			return simpleRow{values: []any{created.Add(time.Minute)}}
		}
		return simpleRow{err: pgx.ErrNoRows}
	}}
	jobs := NewJobRepository(db)
	ctx := context.Background()

	job := &domain.Job{ID: jobID1, UserID: userID, Status: domain.JobStatusQueued, InputKey: domain.InputKeyPending, InputMime: "image/png"}
	if err := jobs.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !job.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt not filled: %v", job.CreatedAt)
	}

	got, err := jobs.GetByID(ctx, jobID1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.JobStatusQueued || got.OutputFormat != domain.OutputFormatWEBP || got.InputSize != 2048 {
		t.Fatalf("job = %+v", got)
	}

	got.Status = domain.JobStatusDone
	got.OutputKey = "outputs/" + jobID1 + ".png"
	if err := jobs.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	last := db.calls[len(db.calls)-1]
	if last.args[1] != "done" || last.args[7] != "outputs/"+jobID1+".png" {
		t.Fatalf("update args = %v", last.args)
	}
	if !got.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Fatalf("UpdatedAt not refreshed")
	}

	if _, err := jobs.GetForUpdate(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetForUpdate err = %v, want ErrNotFound", err)
	}
}

func TestJobRepositoryListAndDelete(t *testing.T) {
	db := &fakeExecutor{
		rows: [][]any{jobValues(jobID2, "failed"), jobValues(jobID1, "done")},
	}
	jobs := NewJobRepository(db)
	ctx := context.Background()

	list, err := jobs.List(ctx, domain.JobFilter{UserID: userID, Status: domain.JobStatusFailed, Query: "j"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != jobID2 {
		t.Fatalf("List = %+v", list)
	}
	args := db.calls[0].args
	if args[1] != "failed" || args[2] != "j" || args[3] != defaultListLimit {
		t.Fatalf("List args = %v", args)
	}

	if err := jobs.Delete(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete missing err = %v, want ErrNotFound", err)
	}
	db.affected = 1
	if err := jobs.Delete(ctx, jobID1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestStoreWithinTxUsesTransaction(t *testing.T) {
	db := &fakeExecutor{row: func(string, []any) pgx.Row { return simpleRow{values: []any{70}} }}
	store := NewStore(db)
	err := store.WithinTx(context.Background(), func(tx domain.Repositories) error {
		_, err := tx.Users().AddCredits(context.Background(), userID, -50)
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if db.txCount != 1 {
		t.Fatalf("txCount = %d", db.txCount)
	}
}

func TestMalformedIDsNeverReachTheDatabase(t *testing.T) {
	db := &fakeExecutor{row: func(string, []any) pgx.Row {
		return simpleRow{err: &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}}
	}}
	users := NewUserRepository(db)
	jobs := NewJobRepository(db)
	ctx := context.Background()

	for _, id := range []string{"", "j1", "not-a-uuid", "' or 1=1 --"} {
		if _, err := users.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("users.GetByID(%q) err = %v, want ErrNotFound", id, err)
		}
		if _, err := users.GetForUpdate(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("users.GetForUpdate(%q) err = %v, want ErrNotFound", id, err)
		}
		if _, err := jobs.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("jobs.GetByID(%q) err = %v, want ErrNotFound", id, err)
		}
		if _, err := jobs.GetForUpdate(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("jobs.GetForUpdate(%q) err = %v, want ErrNotFound", id, err)
		}
		if err := jobs.Delete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("jobs.Delete(%q) err = %v, want ErrNotFound", id, err)
		}
		list, err := jobs.List(ctx, domain.JobFilter{UserID: id})
		if err != nil || len(list) != 0 {
			t.Fatalf("jobs.List(%q) = %v, %v", id, list, err)
		}
	}
	if len(db.calls) != 0 {
		t.Fatalf("database called %d times", len(db.calls))
	}
}

func TestGrantCreditsRaisesLifetimeTotal(t *testing.T) {
	db := &fakeExecutor{row: func(string, []any) pgx.Row { return simpleRow{values: []any{170}} }}
	balance, err := NewUserRepository(db).GrantCredits(context.Background(), userID, 50)
	if err != nil {
		t.Fatalf("GrantCredits: %v", err)
	}
	if balance != 170 {
		t.Fatalf("balance = %d", balance)
	}
	if db.calls[0].query != sqlinline.QGrantUserCredits || !strings.Contains(sqlinline.QGrantUserCredits, "credits_total = credits_total + $2") {
		t.Fatalf("grant did not use the lifetime query")
	}
}
