// Package domain defines the persistence models for users, the credit ledger,
// and usage metering. These types are mapped with GORM and form the core data
// layer of the skill gateway.
package domain

import (
	"time"
)

// User is a billed caller, keyed by email. Rows are created lazily on the
// first billed request (get-or-create) and never mutated afterwards.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: identity of the caller; unique, case-sensitive as stored.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// CreditTxn is one signed entry in the append-only credit ledger. A user's
// balance is always SUM(amount_credits) over their rows; no row is ever
// updated or deleted. Positive rows are top-ups, negative rows are usage
// charges (exactly one per billed request, reason "usage:<route>").
type CreditTxn struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"user_id"        gorm:"type:char(36);not null;index:idx_txn_user"`
	AmountCredits float64   `json:"amount_credits" gorm:"not null"`
	Reason        string    `json:"reason"         gorm:"type:varchar(64);not null"`
	Meta          string    `json:"meta,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_txn_user,priority:2"`

	// User is the ledger owner. Txn rows are cascade-deleted only if the
	// user row itself is removed.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CreditTxn.
func (CreditTxn) TableName() string { return "credit_txn" }

// UsageEvent records one billed request's resource consumption. Every
// UsageEvent is paired 1:1 with a CreditTxn debit of reason "usage:<route>",
// written in the same database transaction.
//
// TokensIn/TokensOut come from a length-based estimator, not an exact
// tokenizer; see skills.EstimateTokens.
type UsageEvent struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"user_id"         gorm:"type:char(36);not null;index:idx_usage_user"`
	Route         string    `json:"route"           gorm:"type:varchar(64);not null"`
	TokensIn      int       `json:"tokens_in"       gorm:"not null"`
	TokensOut     int       `json:"tokens_out"      gorm:"not null"`
	R2ClassA      int       `json:"r2_class_a"      gorm:"not null;default:0"`
	R2ClassB      int       `json:"r2_class_b"      gorm:"not null;default:0"`
	R2GBRetrieved float64   `json:"r2_gb_retrieved" gorm:"not null;default:0"`
	CostCredits   float64   `json:"cost_credits"    gorm:"not null"`
	RequestID     string    `json:"request_id"      gorm:"type:varchar(64);index"`
	CreatedAt     time.Time `json:"created_at"      gorm:"index:idx_usage_user,priority:2"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UsageEvent.
func (UsageEvent) TableName() string { return "usage_event" }
