package engine

import (
	"errors"
	"fmt"
)

// Base error kinds. Specific failures wrap one of these so callers can map
// them to HTTP statuses with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

var (
	// ErrSelfResponse: a proposer may not accept, reject, or counter its own proposal.
	ErrSelfResponse = fmt.Errorf("%w: you cannot respond to your own proposal", ErrConflict)

	// ErrAlreadyResolved: the negotiation was already accepted, rejected, or countered.
	ErrAlreadyResolved = fmt.Errorf("%w: negotiation has already been resolved", ErrConflict)

	// ErrSuperseded: a newer proposal exists; only the chain's newest pending
	// negotiation is actionable.
	ErrSuperseded = fmt.Errorf("%w: negotiation has been superseded by a newer proposal", ErrConflict)

	// ErrPaymentNotConfirmed gates per-day confirmations until payment lands.
	ErrPaymentNotConfirmed = fmt.Errorf("%w: payment has not been confirmed for this engagement", ErrConflict)

	// ErrDailySessionsIncomplete blocks whole-engagement completion while any
	// daily session is missing a confirmation.
	ErrDailySessionsIncomplete = fmt.Errorf("%w: not all daily sessions have been confirmed by both parties", ErrConflict)

	// ErrNoDailySessions: a daily-mode engagement with no session records
	// cannot be completed.
	ErrNoDailySessions = fmt.Errorf("%w: daily engagement has no scheduled sessions", ErrConflict)

	// ErrAlreadyConfirmed: the caller already recorded its completion confirmation.
	ErrAlreadyConfirmed = fmt.Errorf("%w: you have already confirmed completion", ErrConflict)

	// ErrEngagementClosed: the engagement is completed or cancelled and takes
	// no further negotiation or lifecycle updates.
	ErrEngagementClosed = fmt.Errorf("%w: engagement is closed", ErrConflict)

	// ErrInsufficientBalance: a balance debit would go negative.
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrConflict)
)
