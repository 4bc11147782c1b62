package domain

import "errors"

// Relational store outcomes.
var (
	// ErrStaleStatus is returned by conditional writes whose expected prior
	// status no longer matches the stored row.
	ErrStaleStatus         = errors.New("credit status changed concurrently")
	ErrDuplicateSettlement = errors.New("settlement with this ledger reference already recorded")
	ErrDuplicateUsername   = errors.New("username already taken")
)

// Value ledger outcomes. Adapters wrap these with %w.
var (
	// ErrLedgerRejected means the ledger declined or reverted the call; it had
	// no effect.
	ErrLedgerRejected = errors.New("ledger rejected the call")
	// ErrLedgerTimeout means the call may or may not have taken effect.
	ErrLedgerTimeout = errors.New("ledger call outcome unknown")
	// ErrLedgerUnavailable means the call was never sent.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrPriceMismatch     = errors.New("declared total disagrees with ledger price")
	ErrInsufficientFunds = errors.New("insufficient ledger balance")
)
