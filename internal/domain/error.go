package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")

	// Checkout input validation
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrMissingReference = errors.New("payment reference is required")
	ErrMissingCustomer  = errors.New("customer is required")
	ErrMissingCode      = errors.New("access code is required")

	// Provider gateway
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// Access code redemption
	ErrCodeInactive  = errors.New("access code is inactive")
	ErrCodeExpired   = errors.New("access code has expired")
	ErrCodeExhausted = errors.New("access code usage limit reached")
)
