// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the credit
// ledger (CreditTxn) and usage metering (UsageEvent) models.
//
// The ledger is append-only: rows are inserted, never updated or deleted, and
// a user's balance is always derived by summation. The paired insert of a
// UsageEvent and its debit CreditTxn is exposed as a single function so the
// service layer can run it inside one transaction.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-skill-gateway/internal/domain"
)

// SumBalance returns SUM(amount_credits) over the user's ledger rows, 0 when
// the user has no rows. A raw aggregate is used so a missing table surfaces
// as an error rather than a silent zero.
func SumBalance(ctx context.Context, db *gorm.DB, userID string) (float64, error) {
	var total float64
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(amount_credits), 0) FROM credit_txn WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// CreateCreditTxn appends one signed ledger row. Positive amounts are
// top-ups, negative amounts are usage debits.
func CreateCreditTxn(ctx context.Context, db *gorm.DB, userID string, amount float64, reason, meta string) (*domain.CreditTxn, error) {
	t := &domain.CreditTxn{
		ID:            uuid.NewString(),
		UserID:        userID,
		AmountCredits: amount,
		Reason:        reason,
		Meta:          meta,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// CountCreditTxns returns how many ledger rows a user has.
func CountCreditTxns(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM credit_txn WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// ListCreditTxnsPage returns a paginated slice of a user's ledger rows,
// most recent first.
func ListCreditTxnsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CreditTxn, error) {
	var out []domain.CreditTxn
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CreateUsageWithDebit inserts one UsageEvent row and its paired CreditTxn
// debit (amount = -ev.CostCredits, reason "usage:<route>"). Callers must run
// it inside a transaction: both rows commit together or not at all, which is
// what keeps the UsageEvent ↔ ledger-debit pairing an invariant.
func CreateUsageWithDebit(ctx context.Context, tx *gorm.DB, ev *domain.UsageEvent, meta string) (*domain.CreditTxn, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return CreateCreditTxn(ctx, tx, ev.UserID, -ev.CostCredits, "usage:"+ev.Route, meta)
}

// GetUsageEvent fetches a usage event by ID.
func GetUsageEvent(ctx context.Context, db *gorm.DB, id string) (*domain.UsageEvent, error) {
	var ev domain.UsageEvent
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// CountUsageEvents uses a raw COUNT so a missing table surfaces as an error.
func CountUsageEvents(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM usage_event WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// ListUsageEventsPage returns a paginated slice of a user's usage events,
// most recent first.
func ListUsageEventsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.UsageEvent, error) {
	var out []domain.UsageEvent
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
