// Package services – BillingService
//
// This file implements BillingService, the component that owns the credit
// ledger: user provisioning, balance reads, top-ups, the pre-execution
// admission check, and the post-execution charge. Charges write one
// UsageEvent row and one CreditTxn debit inside a single transaction, so a
// partial billing state never persists.
//
// The admission check and the charge are two separate steps; a concurrent
// request admitted at the same balance can drive the balance below the
// floor. The floor is admission control, not a settlement constraint, so
// Charge re-reads the balance inside its transaction and logs the dip rather
// than rejecting it.
package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-skill-gateway/internal/domain"
	"github.com/tbourn/go-skill-gateway/internal/observability"
	"github.com/tbourn/go-skill-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pricing converts usage into a credit cost. Token prices are per 1K tokens;
// storage prices are per operation / per GB and default to zero.
type Pricing struct {
	PriceInPer1K  float64
	PriceOutPer1K float64
	PriceClassA   float64
	PriceClassB   float64
	PriceGB       float64
}

// Cost computes the credit cost of one usage event, rounded to 4 decimals.
func (p Pricing) Cost(tokensIn, tokensOut, classA, classB int, gb float64) float64 {
	cost := float64(tokensIn)*p.PriceInPer1K/1000 +
		float64(tokensOut)*p.PriceOutPer1K/1000 +
		float64(classA)*p.PriceClassA +
		float64(classB)*p.PriceClassB +
		gb*p.PriceGB
	return math.Round(cost*10000) / 10000
}

// BillingContext is the admission decision for one request. The handler
// carries it from Admit to Charge explicitly.
type BillingContext struct {
	UserID    string
	Email     string
	Balance   float64
	RequestID string
}

// Usage is what a charge bills for.
type Usage struct {
	TokensIn      int
	TokensOut     int
	R2ClassA      int
	R2ClassB      int
	R2GBRetrieved float64
}

// BillingService owns the credit ledger.
type BillingService struct {
	DB      *gorm.DB
	Pricing Pricing

	// HardStopBelow is the admission floor: requests from users whose
	// balance is below it are rejected before any skill runs.
	HardStopBelow float64
}

// EnsureUser returns the user for email, creating the row if needed.
// Surrounding whitespace is trimmed; the email is otherwise stored as
// given, and lookups are case-sensitive.
func (s *BillingService) EnsureUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrNoIdentity
	}
	return repo.EnsureUser(ctx, s.DB, email)
}

// Balance returns the user's current balance: the sum of all ledger rows.
func (s *BillingService) Balance(ctx context.Context, userID string) (float64, error) {
	return repo.SumBalance(ctx, s.DB, userID)
}

// TopUp credits the user's ledger and returns the new balance.
func (s *BillingService) TopUp(ctx context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if reason == "" {
		reason = "topup"
	}
	if _, err := repo.CreateCreditTxn(ctx, s.DB, userID, amount, reason, ""); err != nil {
		return 0, err
	}
	return repo.SumBalance(ctx, s.DB, userID)
}

// Admit resolves the caller and checks the balance against the floor. On
// ErrInsufficientCredits the returned context is still populated so handlers
// can expose the current balance.
func (s *BillingService) Admit(ctx context.Context, email, requestID string) (*BillingContext, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Admit",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	u, err := s.EnsureUser(ctx, email)
	if err != nil {
		return nil, err
	}
	balance, err := repo.SumBalance(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	bc := &BillingContext{UserID: u.ID, Email: u.Email, Balance: balance, RequestID: requestID}
	if balance < s.HardStopBelow {
		return bc, ErrInsufficientCredits
	}
	return bc, nil
}

// Charge bills one usage event against the admitted context: it writes the
// UsageEvent row and the paired ledger debit in one transaction and returns
// the cost and the post-charge balance.
func (s *BillingService) Charge(ctx context.Context, bc *BillingContext, route string, usage Usage) (cost, newBalance float64, err error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Charge",
		trace.WithAttributes(
			attribute.String("user.id", bc.UserID),
			attribute.String("route", route),
		),
	)
	defer span.End()

	cost = s.Pricing.Cost(usage.TokensIn, usage.TokensOut, usage.R2ClassA, usage.R2ClassB, usage.R2GBRetrieved)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev := &domain.UsageEvent{
			UserID:        bc.UserID,
			Route:         route,
			TokensIn:      usage.TokensIn,
			TokensOut:     usage.TokensOut,
			R2ClassA:      usage.R2ClassA,
			R2ClassB:      usage.R2ClassB,
			R2GBRetrieved: usage.R2GBRetrieved,
			CostCredits:   cost,
			RequestID:     bc.RequestID,
		}
		if _, err := repo.CreateUsageWithDebit(ctx, tx, ev, ""); err != nil {
			return err
		}
		balance, err := repo.SumBalance(ctx, tx, bc.UserID)
		if err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("charge: %w", err)
	}

	observability.CreditsCharged.WithLabelValues(route).Add(cost)

	if newBalance < s.HardStopBelow {
		log.Warn().
			Str("user_id", bc.UserID).
			Float64("balance", newBalance).
			Float64("floor", s.HardStopBelow).
			Msg("charge drove balance below floor")
	}
	return cost, newBalance, nil
}
