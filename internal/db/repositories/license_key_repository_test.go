package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

var licenseKeyCols = []string{
	"id", "key_string", "is_used", "activated_by_user_id", "activated_at", "created_at",
}

func newLicenseKeyRepo(t *testing.T) (*LicenseKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLicenseKeyRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// CreateBatch / GetByID / List / Delete
// ---------------------------------------------------------------------------

func TestLicenseKeyCreateBatch(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO license_keys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO license_keys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	keys := []*models.LicenseKey{
		{KeyString: "AAAA-BBBB-CCCC-DDDD"},
		{KeyString: "EEEE-FFFF-GGGG-HHHH"},
	}
	if err := repo.CreateBatch(context.Background(), keys); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	for _, key := range keys {
		if key.ID == "" {
			t.Errorf("CreateBatch did not assign an ID to %s", key.KeyString)
		}
	}
}

func TestLicenseKeyGetByID_NotFound(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM license_keys WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(licenseKeyCols))

	key, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != nil {
		t.Errorf("expected nil key for not found, got %v", key)
	}
}

func TestLicenseKeyList(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	activatedBy := "user-1"
	activatedAt := time.Now()
	rows := sqlmock.NewRows(licenseKeyCols).
		AddRow("key-1", "AAAA-BBBB-CCCC-DDDD", true, &activatedBy, &activatedAt, time.Now()).
		AddRow("key-2", "EEEE-FFFF-GGGG-HHHH", false, nil, nil, time.Now())
	mock.ExpectQuery("SELECT.*FROM license_keys ORDER BY created_at").
		WillReturnRows(rows)

	keys, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len = %d, want 2", len(keys))
	}
	if keys[0].ActivatedByUserID == nil || *keys[0].ActivatedByUserID != "user-1" {
		t.Error("used key missing activation audit data")
	}
	if keys[1].ActivatedByUserID != nil {
		t.Error("unused key should have nil ActivatedByUserID")
	}
}

func TestLicenseKeyDelete(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectExec("DELETE FROM license_keys WHERE id").
		WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "key-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Redeem
// ---------------------------------------------------------------------------

func TestRedeem_ClaimsKeyAndPromotesUser(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE license_keys.*is_used = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET account_tier").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	redeemed, err := repo.Redeem(context.Background(), "AAAA-BBBB-CCCC-DDDD", "user-1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !redeemed {
		t.Error("expected redeemed=true for a fresh key")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}

func TestRedeem_UsedOrUnknownKey(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE license_keys.*is_used = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	redeemed, err := repo.Redeem(context.Background(), "AAAA-BBBB-CCCC-DDDD", "user-1")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if redeemed {
		t.Error("expected redeemed=false when no row was claimed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}

func TestRedeem_PromoteFailureRollsBack(t *testing.T) {
	repo, mock := newLicenseKeyRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE license_keys.*is_used = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET account_tier").
		WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := repo.Redeem(context.Background(), "AAAA-BBBB-CCCC-DDDD", "user-1")
	if err == nil {
		t.Fatal("expected error when tier promotion fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations not met: %v", err)
	}
}
