// quota.go implements the retrieval quota ledger for free-tier accounts.
// The actual counter arithmetic lives in UserRepository.ReserveRetrieval,
// which runs refresh, limit check, and increment under a row lock in one
// transaction; this type decides who the quota applies to and translates
// the outcome into the service error taxonomy.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/samsonhsy/dot-backend/internal/db/models"
	"github.com/samsonhsy/dot-backend/internal/db/repositories"
)

// QuotaStore is the slice of UserRepository the ledger needs
type QuotaStore interface {
	ReserveRetrieval(ctx context.Context, userID string, limit, periodDays int, today time.Time) (*repositories.QuotaReservation, error)
	ReleaseRetrieval(ctx context.Context, userID string) error
}

// QuotaLedger gates archive retrievals for free-tier users. Pro and admin
// accounts are exempt and never touch the counter.
type QuotaLedger struct {
	store      QuotaStore
	limit      int
	periodDays int
	logger     *slog.Logger

	// now is replaceable in tests
	now func() time.Time
}

// NewQuotaLedger creates a quota ledger. Limit N permits exactly N
// retrievals per rolling window of periodDays days.
func NewQuotaLedger(store QuotaStore, limit, periodDays int, logger *slog.Logger) *QuotaLedger {
	return &QuotaLedger{
		store:      store,
		limit:      limit,
		periodDays: periodDays,
		logger:     logger,
		now:        time.Now,
	}
}

// Reserve consumes one retrieval slot for the user, refreshing the quota
// window first. Exempt tiers return immediately without touching the
// counter. Returns a QuotaExceeded error naming the numeric limit when the
// window is exhausted.
func (l *QuotaLedger) Reserve(ctx context.Context, user *models.User) error {
	if user.ExemptFromQuota() {
		return nil
	}

	reservation, err := l.store.ReserveRetrieval(ctx, user.ID, l.limit, l.periodDays, l.now())
	if err != nil {
		return ErrPersistence(err, "failed to reserve retrieval slot")
	}
	if !reservation.Allowed {
		return ErrQuotaExceeded(l.limit)
	}

	return nil
}

// Release returns a slot reserved by Reserve after the retrieval it was
// reserved for failed. Best effort: a failed release is logged and the
// original failure stands, the user just loses one slot until the window
// resets.
func (l *QuotaLedger) Release(ctx context.Context, user *models.User) {
	if user.ExemptFromQuota() {
		return
	}
	if err := l.store.ReleaseRetrieval(ctx, user.ID); err != nil {
		l.logger.Error("failed to release retrieval slot",
			"user_id", user.ID, "error", err)
	}
}
