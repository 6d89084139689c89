// Package services defines the business logic for billing, skill execution,
// and raw completions. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrNoIdentity is returned when no caller identity could be resolved
	// from the request.
	ErrNoIdentity = errors.New("no caller identity")

	// ErrInsufficientCredits is returned when a user's balance is below the
	// configured hard-stop floor.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when a top-up amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrEmptyPrompt is returned when an ask request carries no usable
	// prompt or messages.
	ErrEmptyPrompt = errors.New("prompt is empty")
)
