package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-skill-gateway/internal/domain"
	"github.com/tbourn/go-skill-gateway/internal/repo"
)

func newBillingDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("billing_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.User{}, &domain.CreditTxn{}, &domain.UsageEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newBillingService(t *testing.T, floor float64) *BillingService {
	t.Helper()
	return &BillingService{
		DB:            newBillingDB(t),
		Pricing:       Pricing{PriceInPer1K: 0.2, PriceOutPer1K: 0.6},
		HardStopBelow: floor,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPricing_Cost(t *testing.T) {
	p := Pricing{PriceInPer1K: 0.2, PriceOutPer1K: 0.6}

	// 400 in and 200 out: 0.08 + 0.12 = 0.2 exactly.
	if got := p.Cost(400, 200, 0, 0, 0); !almostEqual(got, 0.2) {
		t.Errorf("Cost(400,200): got %v", got)
	}
	// Storage prices default to zero, so storage usage costs nothing.
	if got := p.Cost(0, 0, 1000, 1000, 5); got != 0 {
		t.Errorf("Cost(storage only): got %v", got)
	}
	// Rounding to 4 decimals.
	if got := p.Cost(1, 1, 0, 0, 0); !almostEqual(got, 0.0008) {
		t.Errorf("Cost(1,1): got %v", got)
	}
	if got := p.Cost(0, 0, 0, 0, 0); got != 0 {
		t.Errorf("Cost(zero): got %v", got)
	}
}

func TestEnsureUser_TrimsButKeepsCase(t *testing.T) {
	s := newBillingService(t, 0)
	ctx := context.Background()

	u1, err := s.EnsureUser(ctx, "  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u1.Email != "Alice@Example.COM" {
		t.Errorf("email: got %q, want case preserved", u1.Email)
	}

	// Same bytes after trimming resolve to the same user.
	u2, err := s.EnsureUser(ctx, "Alice@Example.COM")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("expected same user, got %q vs %q", u2.ID, u1.ID)
	}
}

func TestEnsureUser_CaseSensitiveIdentity(t *testing.T) {
	s := newBillingService(t, 0)
	ctx := context.Background()

	upper, err := s.EnsureUser(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	lower, err := s.EnsureUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("EnsureUser lower: %v", err)
	}
	if upper.ID == lower.ID {
		t.Fatalf("distinct-case emails must map to distinct users, both got %q", upper.ID)
	}

	// Ledgers stay separate too.
	if _, err := s.TopUp(ctx, upper.ID, 5, ""); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	bal, err := s.Balance(ctx, lower.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 0 {
		t.Errorf("lower-case user balance: got %v, want 0", bal)
	}
}

func TestEnsureUser_BlankEmail(t *testing.T) {
	s := newBillingService(t, 0)
	if _, err := s.EnsureUser(context.Background(), "   "); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("got %v, want ErrNoIdentity", err)
	}
}

func TestTopUp_RejectsNonPositiveAmounts(t *testing.T) {
	s := newBillingService(t, 0)
	ctx := context.Background()
	u, _ := s.EnsureUser(ctx, "a@example.com")

	for _, amount := range []float64{0, -5} {
		if _, err := s.TopUp(ctx, u.ID, amount, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("TopUp(%v): got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestTopUp_CreditsLedger(t *testing.T) {
	s := newBillingService(t, 0)
	ctx := context.Background()
	u, _ := s.EnsureUser(ctx, "a@example.com")

	bal, err := s.TopUp(ctx, u.ID, 5, "")
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if !almostEqual(bal, 5) {
		t.Errorf("balance after topup: got %v", bal)
	}

	var txn domain.CreditTxn
	if err := s.DB.Where("user_id = ?", u.ID).First(&txn).Error; err != nil {
		t.Fatalf("load txn: %v", err)
	}
	if txn.Reason != "topup" {
		t.Errorf("default reason: got %q", txn.Reason)
	}
}

func TestAdmit_BelowFloorReturnsPopulatedContext(t *testing.T) {
	s := newBillingService(t, 1)
	ctx := context.Background()

	// A fresh user has balance 0, below the floor of 1.
	bc, err := s.Admit(ctx, "poor@example.com", "req-1")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}
	if bc == nil {
		t.Fatal("context must be populated even on rejection")
	}
	if bc.Email != "poor@example.com" || bc.Balance != 0 || bc.RequestID != "req-1" {
		t.Errorf("billing context: %+v", bc)
	}
}

func TestAdmit_AtFloorPasses(t *testing.T) {
	s := newBillingService(t, 1)
	ctx := context.Background()
	u, _ := s.EnsureUser(ctx, "exact@example.com")
	if _, err := s.TopUp(ctx, u.ID, 1, ""); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	bc, err := s.Admit(ctx, "exact@example.com", "req-1")
	if err != nil {
		t.Fatalf("Admit at floor: %v", err)
	}
	if !almostEqual(bc.Balance, 1) {
		t.Errorf("balance: got %v", bc.Balance)
	}
}

func TestCharge_DebitsAtomicallyAndReturnsNewBalance(t *testing.T) {
	s := newBillingService(t, 0)
	ctx := context.Background()
	u, _ := s.EnsureUser(ctx, "a@example.com")
	if _, err := s.TopUp(ctx, u.ID, 5, ""); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	bc, err := s.Admit(ctx, "a@example.com", "req-1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	cost, newBalance, err := s.Charge(ctx, bc, "ask", Usage{TokensIn: 400, TokensOut: 200})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if !almostEqual(cost, 0.2) {
		t.Errorf("cost: got %v", cost)
	}
	if !almostEqual(newBalance, 4.8) {
		t.Errorf("new balance: got %v", newBalance)
	}

	// The usage event and the debit must both exist and agree.
	ev, err := repo.GetUsageEvent(ctx, s.DB, mustLatestEventID(t, s.DB, u.ID))
	if err != nil {
		t.Fatalf("GetUsageEvent: %v", err)
	}
	if ev.TokensIn != 400 || ev.TokensOut != 200 || !almostEqual(ev.CostCredits, 0.2) || ev.RequestID != "req-1" {
		t.Errorf("usage event: %+v", ev)
	}

	bal, err := s.Balance(ctx, u.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !almostEqual(bal, 4.8) {
		t.Errorf("ledger balance: got %v", bal)
	}
}

func TestCharge_CanDriveBalanceBelowFloor(t *testing.T) {
	s := newBillingService(t, 1)
	ctx := context.Background()
	u, _ := s.EnsureUser(ctx, "edge@example.com")
	if _, err := s.TopUp(ctx, u.ID, 1, ""); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	bc, err := s.Admit(ctx, "edge@example.com", "req-1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// Admission passed at the floor; the charge itself still settles.
	_, newBalance, err := s.Charge(ctx, bc, "ask", Usage{TokensIn: 4000, TokensOut: 0})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if newBalance >= 1 {
		t.Errorf("expected balance below floor, got %v", newBalance)
	}
}

func mustLatestEventID(t *testing.T, db *gorm.DB, userID string) string {
	t.Helper()
	var ev domain.UsageEvent
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").First(&ev).Error; err != nil {
		t.Fatalf("load usage event: %v", err)
	}
	return ev.ID
}
