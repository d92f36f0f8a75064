// license_key_repository.go implements LicenseKeyRepository, providing
// database queries for one-time upgrade codes including the atomic
// redeem-and-promote transaction.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

// LicenseKeyRepository handles license key database operations
type LicenseKeyRepository struct {
	db *sqlx.DB
}

// NewLicenseKeyRepository creates a new LicenseKeyRepository
func NewLicenseKeyRepository(db *sqlx.DB) *LicenseKeyRepository {
	return &LicenseKeyRepository{db: db}
}

const licenseKeyColumns = `id, key_string, is_used, activated_by_user_id, activated_at, created_at`

// CreateBatch inserts the given keys in one transaction
func (r *LicenseKeyRepository) CreateBatch(ctx context.Context, keys []*models.LicenseKey) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO license_keys (id, key_string, is_used, created_at)
		VALUES ($1, $2, FALSE, $3)
	`
	for _, key := range keys {
		key.ID = uuid.New().String()
		key.CreatedAt = time.Now()
		if _, err := tx.ExecContext(ctx, query, key.ID, key.KeyString, key.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a license key by ID. Returns (nil, nil) when no row matches.
func (r *LicenseKeyRepository) GetByID(ctx context.Context, keyID string) (*models.LicenseKey, error) {
	var key models.LicenseKey
	query := `SELECT ` + licenseKeyColumns + ` FROM license_keys WHERE id = $1`
	err := r.db.GetContext(ctx, &key, query, keyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// List retrieves all license keys, newest first
func (r *LicenseKeyRepository) List(ctx context.Context) ([]*models.LicenseKey, error) {
	keys := make([]*models.LicenseKey, 0)
	query := `SELECT ` + licenseKeyColumns + ` FROM license_keys ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes a license key row
func (r *LicenseKeyRepository) Delete(ctx context.Context, keyID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM license_keys WHERE id = $1`, keyID)
	return err
}

// Redeem marks the key used and promotes the user to pro, in one
// transaction. The conditional UPDATE (is_used = FALSE in the WHERE clause)
// makes redemption atomic per key: of N concurrent attempts exactly one
// matches the row, every other attempt sees zero rows affected and reports
// redeemed=false. An unknown key also reports redeemed=false; callers must
// not be able to distinguish unknown keys from used ones.
func (r *LicenseKeyRepository) Redeem(ctx context.Context, keyString, userID string) (redeemed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now()
	claimQuery := `
		UPDATE license_keys
		SET is_used = TRUE, activated_by_user_id = $2, activated_at = $3
		WHERE key_string = $1 AND is_used = FALSE
	`
	result, err := tx.ExecContext(ctx, claimQuery, keyString, userID, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	promoteQuery := `UPDATE users SET account_tier = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, promoteQuery, userID, models.TierPro, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
