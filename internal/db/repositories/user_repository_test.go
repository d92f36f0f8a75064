package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

var errDB = errors.New("db error")

var userFixture = models.User{
	Username:     "alice",
	Email:        "alice@example.com",
	PasswordHash: "$2a$12$hash",
}

var userCols = []string{
	"id", "username", "email", "password_hash", "account_tier",
	"monthly_retrieval_count", "retrieval_period_start_date", "created_at", "updated_at",
}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "alice", "alice@example.com", "$2a$12$hash", "free",
			0, time.Now(), time.Now(), time.Now())
}

func emptyUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols)
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// GetByID / GetByUsername / GetByEmail
// ---------------------------------------------------------------------------

func TestUserGetByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs("user-1").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("Username = %s, want alice", user.Username)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs("missing").
		WillReturnRows(emptyUserRow())

	user, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for not found, got %v", user)
	}
}

func TestUserGetByUsername_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
}

func TestUserGetByEmail_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnError(errDB)

	_, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserCreate_AssignsIDAndDefaults(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := userFixture
	if err := repo.Create(context.Background(), &u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Error("Create did not assign an ID")
	}
	if u.AccountTier != "free" {
		t.Errorf("AccountTier = %s, want free", u.AccountTier)
	}
	if u.MonthlyRetrievalCount != 0 {
		t.Errorf("MonthlyRetrievalCount = %d, want 0", u.MonthlyRetrievalCount)
	}
}

func TestUserCreate_UniqueViolation(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	u := userFixture
	err := repo.Create(context.Background(), &u)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
}

// ---------------------------------------------------------------------------
// ReserveRetrieval
// ---------------------------------------------------------------------------

func quotaRow(count int, periodStart time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"monthly_retrieval_count", "retrieval_period_start_date"}).
		AddRow(count, periodStart)
}

func TestReserveRetrieval_AllowedConsumesSlot(t *testing.T) {
	repo, mock := newUserRepo(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	periodStart := today.AddDate(0, 0, -5)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT monthly_retrieval_count.*FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(quotaRow(2, periodStart))
	mock.ExpectExec("UPDATE users SET monthly_retrieval_count = monthly_retrieval_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.ReserveRetrieval(context.Background(), "user-1", 10, 30, today)
	if err != nil {
		t.Fatalf("ReserveRetrieval: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected reservation to be allowed")
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
}

func TestReserveRetrieval_DeniedAtLimit(t *testing.T) {
	repo, mock := newUserRepo(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	periodStart := today.AddDate(0, 0, -5)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT monthly_retrieval_count.*FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(quotaRow(10, periodStart))
	mock.ExpectCommit()

	res, err := repo.ReserveRetrieval(context.Background(), "user-1", 10, 30, today)
	if err != nil {
		t.Fatalf("ReserveRetrieval: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected reservation to be denied at the limit")
	}
	if res.Count != 10 {
		t.Errorf("Count = %d, want 10", res.Count)
	}
}

func TestReserveRetrieval_ResetsExpiredWindow(t *testing.T) {
	repo, mock := newUserRepo(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	staleStart := today.AddDate(0, 0, -45)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT monthly_retrieval_count.*FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(quotaRow(10, staleStart))
	mock.ExpectExec("UPDATE users.*monthly_retrieval_count = 0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET monthly_retrieval_count = monthly_retrieval_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.ReserveRetrieval(context.Background(), "user-1", 10, 30, today)
	if err != nil {
		t.Fatalf("ReserveRetrieval: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected reservation after window reset")
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1 after reset", res.Count)
	}
	if !res.PeriodStart.Equal(today) {
		t.Errorf("PeriodStart = %v, want %v", res.PeriodStart, today)
	}
}

func TestReserveRetrieval_UnknownUser(t *testing.T) {
	repo, mock := newUserRepo(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT monthly_retrieval_count.*FOR UPDATE").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_retrieval_count", "retrieval_period_start_date"}))
	mock.ExpectRollback()

	_, err := repo.ReserveRetrieval(context.Background(), "ghost", 10, 30, today)
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
}

// ---------------------------------------------------------------------------
// ReleaseRetrieval
// ---------------------------------------------------------------------------

func TestReleaseRetrieval(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users.*GREATEST\\(monthly_retrieval_count - 1, 0\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ReleaseRetrieval(context.Background(), "user-1"); err != nil {
		t.Fatalf("ReleaseRetrieval: %v", err)
	}
}

// ---------------------------------------------------------------------------
// UpdateTier
// ---------------------------------------------------------------------------

func TestUpdateTier(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users SET account_tier").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateTier(context.Background(), "user-1", "pro"); err != nil {
		t.Fatalf("UpdateTier: %v", err)
	}
}
