// Package models defines the database model types for the dotfile service.
// Each type corresponds to a database table and uses struct tags for both
// JSON serialization and sqlx row scanning. Models are pure data types;
// business logic belongs in the service layer, query logic in the
// repositories layer.
package models

import "time"

// Account tiers. Tier changes only happen through admin promotion or
// license key activation.
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierAdmin = "admin"
)

// ValidTier reports whether tier is one of the known account tiers.
func ValidTier(tier string) bool {
	return tier == TierFree || tier == TierPro || tier == TierAdmin
}

// User represents a registered account. The retrieval counter and period
// start date are mutated only through UserRepository.ReserveRetrieval and
// ReleaseRetrieval; tier only through Promote or license redemption.
type User struct {
	ID                       string    `db:"id" json:"id"`
	Username                 string    `db:"username" json:"username"`
	Email                    string    `db:"email" json:"email"`
	PasswordHash             string    `db:"password_hash" json:"-"`
	AccountTier              string    `db:"account_tier" json:"account_tier"`
	MonthlyRetrievalCount    int       `db:"monthly_retrieval_count" json:"monthly_retrieval_count"`
	RetrievalPeriodStartDate time.Time `db:"retrieval_period_start_date" json:"retrieval_period_start_date"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin tier.
func (u *User) IsAdmin() bool { return u.AccountTier == TierAdmin }

// ExemptFromQuota reports whether archive retrievals by this user bypass
// the retrieval quota entirely. Pro and admin accounts never touch the
// retrieval counter.
func (u *User) ExemptFromQuota() bool {
	return u.AccountTier == TierPro || u.AccountTier == TierAdmin
}
