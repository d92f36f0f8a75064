// Package repositories implements the data access layer (repository pattern)
// for the dotfile service. Each repository type encapsulates all database
// queries for a domain entity. Services never issue SQL directly; all
// database access goes through this layer, which keeps query logic testable
// in isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. Used to turn store-resolved races (duplicate filename, username,
// license key) into conflict outcomes instead of opaque 500s.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// constraint violation, as raised when deleting a row that other rows still
// reference.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, account_tier,
	monthly_retrieval_count, retrieval_period_start_date, created_at, updated_at`

// Create inserts a new user. The caller supplies username, email and
// password hash; ID, tier, quota fields, and timestamps are filled here.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	if user.AccountTier == "" {
		user.AccountTier = models.TierFree
	}
	user.MonthlyRetrievalCount = 0
	user.RetrievalPeriodStartDate = time.Now().UTC().Truncate(24 * time.Hour)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, username, email, password_hash, account_tier,
			monthly_retrieval_count, retrieval_period_start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AccountTier,
		user.MonthlyRetrievalCount,
		user.RetrievalPeriodStartDate,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetByID retrieves a user by ID. Returns (nil, nil) when no row matches.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username. Returns (nil, nil) when no row matches.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	err := r.db.GetContext(ctx, &user, query, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when no row matches.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List retrieves all users ordered by creation time, newest first
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0)
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

// Delete deletes a user. Dependent collections are deliberately NOT cascaded;
// callers decide what to do with a deleted user's data.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

// UpdateTier sets a user's account tier
func (r *UserRepository) UpdateTier(ctx context.Context, userID, tier string) error {
	query := `UPDATE users SET account_tier = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, tier, time.Now())
	return err
}

// QuotaReservation is the outcome of an atomic retrieval-quota reservation.
type QuotaReservation struct {
	// Allowed is true when a retrieval slot was reserved (counter incremented)
	Allowed bool
	// Count is the retrieval counter after the operation
	Count int
	// PeriodStart is the quota window start after any refresh
	PeriodStart time.Time
}

// ReserveRetrieval atomically refreshes the user's quota window and, if the
// counter is below limit, consumes one retrieval slot. The row is locked
// (SELECT ... FOR UPDATE) for the duration so two concurrent retrievals can
// never both win the last slot. A window refresh is persisted even when the
// subsequent limit check denies, so a stale window never double-resets.
func (r *UserRepository) ReserveRetrieval(ctx context.Context, userID string, limit, periodDays int, today time.Time) (*QuotaReservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var row struct {
		Count       int       `db:"monthly_retrieval_count"`
		PeriodStart time.Time `db:"retrieval_period_start_date"`
	}
	lockQuery := `
		SELECT monthly_retrieval_count, retrieval_period_start_date
		FROM users WHERE id = $1 FOR UPDATE
	`
	if err := tx.GetContext(ctx, &row, lockQuery, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s not found", userID)
		}
		return nil, err
	}

	periodEnd := row.PeriodStart.AddDate(0, 0, periodDays)
	if today.After(periodEnd) {
		row.Count = 0
		row.PeriodStart = today
		resetQuery := `
			UPDATE users
			SET monthly_retrieval_count = 0, retrieval_period_start_date = $2, updated_at = $3
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, resetQuery, userID, today, time.Now()); err != nil {
			return nil, err
		}
	}

	if row.Count >= limit {
		// Denied, but commit so a window refresh above still sticks.
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &QuotaReservation{Allowed: false, Count: row.Count, PeriodStart: row.PeriodStart}, nil
	}

	consumeQuery := `
		UPDATE users SET monthly_retrieval_count = monthly_retrieval_count + 1, updated_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, consumeQuery, userID, time.Now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &QuotaReservation{Allowed: true, Count: row.Count + 1, PeriodStart: row.PeriodStart}, nil
}

// ReleaseRetrieval returns one previously reserved retrieval slot, flooring
// the counter at zero. Used when archive composition fails after the slot
// was reserved.
func (r *UserRepository) ReleaseRetrieval(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET monthly_retrieval_count = GREATEST(monthly_retrieval_count - 1, 0), updated_at = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, time.Now())
	return err
}
