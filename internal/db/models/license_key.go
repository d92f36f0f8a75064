// Package models - license_key.go defines the LicenseKey model for one-time
// account upgrade codes.
package models

import "time"

// LicenseKey is an admin-generated one-time upgrade code. IsUsed transitions
// false→true exactly once, together with the consuming user's free→pro tier
// change; the activation fields are audit data and never change afterwards.
type LicenseKey struct {
	ID                string     `db:"id" json:"id"`
	KeyString         string     `db:"key_string" json:"key_string"`
	IsUsed            bool       `db:"is_used" json:"is_used"`
	ActivatedByUserID *string    `db:"activated_by_user_id" json:"activated_by_user_id,omitempty"`
	ActivatedAt       *time.Time `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}
