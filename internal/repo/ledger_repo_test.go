package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-skill-gateway/internal/domain"
)

func newLedgerDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ledger_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u, err := EnsureUser(context.Background(), db, email)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	return u
}

func TestSumBalance_EmptyLedgerIsZero(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{})
	u := seedUser(t, db, "a@example.com")

	bal, err := SumBalance(context.Background(), db, u.ID)
	if err != nil {
		t.Fatalf("SumBalance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("expected 0 balance, got %v", bal)
	}
}

func TestSumBalance_MatchesLedgerRows(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{})
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	amounts := []float64{10, -0.2, 2.5, -1.3}
	var want float64
	for _, a := range amounts {
		reason := "topup"
		if a < 0 {
			reason = "usage:ask"
		}
		if _, err := CreateCreditTxn(ctx, db, u.ID, a, reason, ""); err != nil {
			t.Fatalf("CreateCreditTxn(%v): %v", a, err)
		}
		want += a
	}

	got, err := SumBalance(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("SumBalance: %v", err)
	}
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("balance drift: got %v want %v", got, want)
	}
}

func TestSumBalance_IsolatedPerUser(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{})
	ctx := context.Background()
	a := seedUser(t, db, "a@example.com")
	b := seedUser(t, db, "b@example.com")

	if _, err := CreateCreditTxn(ctx, db, a.ID, 7, "topup", ""); err != nil {
		t.Fatalf("CreateCreditTxn: %v", err)
	}

	balB, err := SumBalance(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("SumBalance: %v", err)
	}
	if balB != 0 {
		t.Fatalf("expected other user's ledger untouched, got %v", balB)
	}
}

func TestCreateUsageWithDebit_WritesPairedRows(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{}, &domain.UsageEvent{})
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	ev := &domain.UsageEvent{
		UserID:      u.ID,
		Route:       "ask",
		TokensIn:    400,
		TokensOut:   200,
		CostCredits: 0.2,
		RequestID:   "req-1",
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := CreateUsageWithDebit(ctx, tx, ev, "")
		return err
	})
	if err != nil {
		t.Fatalf("CreateUsageWithDebit: %v", err)
	}

	var txn domain.CreditTxn
	if err := db.Where("user_id = ?", u.ID).First(&txn).Error; err != nil {
		t.Fatalf("load debit: %v", err)
	}
	if txn.AmountCredits != -0.2 {
		t.Errorf("debit amount: got %v", txn.AmountCredits)
	}
	if txn.Reason != "usage:ask" {
		t.Errorf("debit reason: got %q", txn.Reason)
	}

	got, err := GetUsageEvent(ctx, db, ev.ID)
	if err != nil {
		t.Fatalf("GetUsageEvent: %v", err)
	}
	if got.CostCredits != 0.2 || got.RequestID != "req-1" {
		t.Errorf("usage event fields: %+v", got)
	}
}

func TestCreateUsageWithDebit_RollsBackBothRows(t *testing.T) {
	// The credit_txn table is left unmigrated so the debit insert fails
	// after the usage event insert succeeded.
	db := newLedgerDB(t, &domain.User{}, &domain.UsageEvent{})
	ctx := context.Background()

	var u domain.User
	u.ID = "u1"
	u.Email = "a@example.com"
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	ev := &domain.UsageEvent{UserID: u.ID, Route: "ask", CostCredits: 0.5}
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := CreateUsageWithDebit(ctx, tx, ev, "")
		return err
	})
	if err == nil {
		t.Fatalf("expected debit failure")
	}

	var count int64
	if err := db.Model(&domain.UsageEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("usage event survived a failed charge: count=%d", count)
	}
}

func TestListUsageEventsPage_NewestFirst(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{}, &domain.UsageEvent{})
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		ev := &domain.UsageEvent{
			UserID:      u.ID,
			Route:       "ask",
			CostCredits: float64(i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := CreateUsageWithDebit(ctx, tx, ev, "")
			return err
		})
		if err != nil {
			t.Fatalf("seed event %d: %v", i, err)
		}
	}

	items, err := ListUsageEventsPage(ctx, db, u.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListUsageEventsPage: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 events, got %d", len(items))
	}
	if items[0].CostCredits != 2 || items[2].CostCredits != 0 {
		t.Errorf("expected newest first, got costs %v %v %v",
			items[0].CostCredits, items[1].CostCredits, items[2].CostCredits)
	}

	total, err := CountUsageEvents(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("CountUsageEvents: %v", err)
	}
	if total != 3 {
		t.Errorf("count: got %d", total)
	}
}

func TestListCreditTxnsPage_NewestFirstAndCount(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{})
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		row := &domain.CreditTxn{
			ID:            fmt.Sprintf("txn-%d", i),
			UserID:        u.ID,
			AmountCredits: float64(i + 1),
			Reason:        "topup",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.WithContext(ctx).Create(row).Error; err != nil {
			t.Fatalf("seed txn %d: %v", i, err)
		}
	}

	items, err := ListCreditTxnsPage(ctx, db, u.ID, 0, 2)
	if err != nil {
		t.Fatalf("ListCreditTxnsPage: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
	if items[0].AmountCredits != 3 || items[1].AmountCredits != 2 {
		t.Errorf("expected newest first, got amounts %v %v",
			items[0].AmountCredits, items[1].AmountCredits)
	}

	total, err := CountCreditTxns(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("CountCreditTxns: %v", err)
	}
	if total != 3 {
		t.Errorf("count: got %d", total)
	}
}

func TestUsageStats_CountAndMaxTimestamp(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.CreditTxn{}, &domain.UsageEvent{})
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	count, maxTS, err := UsageStats(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("UsageStats empty: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("empty stats: count=%d maxTS=%v", count, maxTS)
	}

	newest := time.Now().UTC().Truncate(time.Second)
	for _, ts := range []time.Time{newest.Add(-time.Minute), newest} {
		ev := &domain.UsageEvent{UserID: u.ID, Route: "ask", CreatedAt: ts}
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := CreateUsageWithDebit(ctx, tx, ev, "")
			return err
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	count, maxTS, err = UsageStats(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("UsageStats: %v", err)
	}
	if count != 2 || maxTS == nil || !maxTS.Equal(newest) {
		t.Fatalf("stats: count=%d maxTS=%v want newest=%v", count, maxTS, newest)
	}
}
