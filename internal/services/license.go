// license.go implements the license key registry: admin batch generation of
// one-time upgrade codes and their exactly-once redemption.
package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

const (
	keyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroups     = 4
	keyGroupLen   = 4
	// MaxKeyBatch caps how many keys one generate request may produce
	MaxKeyBatch = 100
)

// LicenseStore is the slice of LicenseKeyRepository the registry needs
type LicenseStore interface {
	CreateBatch(ctx context.Context, keys []*models.LicenseKey) error
	GetByID(ctx context.Context, keyID string) (*models.LicenseKey, error)
	List(ctx context.Context) ([]*models.LicenseKey, error)
	Delete(ctx context.Context, keyID string) error
	Redeem(ctx context.Context, keyString, userID string) (bool, error)
}

// LicenseRegistry generates and redeems one-time upgrade codes
type LicenseRegistry struct {
	store  LicenseStore
	logger *slog.Logger
}

// NewLicenseRegistry creates a license registry
func NewLicenseRegistry(store LicenseStore, logger *slog.Logger) *LicenseRegistry {
	return &LicenseRegistry{store: store, logger: logger}
}

// NewKeyString produces one code of four dash-joined groups of four
// characters over A-Z0-9 from a cryptographically secure source. Codes are
// not deduplicated against existing rows; at 36^16 possible values the
// collision risk is negligible and the unique constraint would catch one
// anyway. Exported for cmd/keygen, which mints codes offline.
func NewKeyString() (string, error) {
	return keyStringFrom(rand.Reader)
}

func keyStringFrom(r io.Reader) (string, error) {
	const total = keyGroups * keyGroupLen
	chars := make([]byte, 0, total)
	for len(chars) < total {
		buf := make([]byte, total-len(chars))
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of len(keyAlphabet) that fits in a
			// byte; higher values are redrawn to keep the draw uniform.
			if b >= 252 {
				continue
			}
			chars = append(chars, keyAlphabet[int(b)%len(keyAlphabet)])
		}
	}

	groups := make([]string, keyGroups)
	for g := 0; g < keyGroups; g++ {
		groups[g] = string(chars[g*keyGroupLen : (g+1)*keyGroupLen])
	}
	return strings.Join(groups, "-"), nil
}

// Generate creates n unused license keys. n outside [1, MaxKeyBatch] is a
// validation error.
func (r *LicenseRegistry) Generate(ctx context.Context, n int) ([]*models.LicenseKey, error) {
	if n < 1 || n > MaxKeyBatch {
		return nil, ErrValidation("count must be between 1 and %d", MaxKeyBatch)
	}

	keys := make([]*models.LicenseKey, n)
	for i := range keys {
		keyString, err := NewKeyString()
		if err != nil {
			return nil, ErrPersistence(err, "failed to generate key")
		}
		keys[i] = &models.LicenseKey{KeyString: keyString}
	}

	if err := r.store.CreateBatch(ctx, keys); err != nil {
		return nil, ErrPersistence(err, "failed to store license keys")
	}

	r.logger.Info("generated license keys", "count", n)
	return keys, nil
}

// Redeem upgrades the user to pro by consuming an unused key. The tier
// pre-checks run on the caller's already-loaded user row; the store handles
// the per-key race, so of N concurrent redemptions of one key exactly one
// succeeds. Unknown and already-used keys produce the same error so keys
// cannot be enumerated.
func (r *LicenseRegistry) Redeem(ctx context.Context, user *models.User, keyString string) error {
	switch user.AccountTier {
	case models.TierAdmin:
		return ErrValidation("admin accounts do not need an upgrade")
	case models.TierPro:
		return ErrValidation("account is already pro")
	}

	redeemed, err := r.store.Redeem(ctx, keyString, user.ID)
	if err != nil {
		return ErrPersistence(err, "failed to redeem license key")
	}
	if !redeemed {
		return ErrConflict("license key is invalid or already used")
	}

	r.logger.Info("license key redeemed", "user_id", user.ID)
	return nil
}

// List returns all license keys, newest first
func (r *LicenseRegistry) List(ctx context.Context) ([]*models.LicenseKey, error) {
	keys, err := r.store.List(ctx)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list license keys")
	}
	return keys, nil
}

// Delete removes a license key by id. Deleting a used key is permitted but
// discards its activation audit trail.
func (r *LicenseRegistry) Delete(ctx context.Context, keyID string) error {
	key, err := r.store.GetByID(ctx, keyID)
	if err != nil {
		return ErrPersistence(err, "failed to load license key")
	}
	if key == nil {
		return ErrNotFound("license key not found")
	}

	if err := r.store.Delete(ctx, keyID); err != nil {
		return ErrPersistence(err, "failed to delete license key")
	}
	return nil
}
