package domain

import "errors"

var (
	// Transaction errors
	ErrUnknownTransactionKind = errors.New("unknown transaction kind")
	ErrAmountRequired         = errors.New("amount is required for deposit and withdrawal")
	ErrUnexpectedAmount       = errors.New("amount is not allowed for dispute, resolve and chargeback")
	ErrNegativeAmount         = errors.New("amount must not be negative")
	ErrInvalidAmount          = errors.New("amount out of range")
	ErrDuplicateTransaction   = errors.New("transaction id already journaled")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrClientMismatch         = errors.New("transaction belongs to another client")

	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountLocked     = errors.New("account is locked")
	ErrInsufficientFunds = errors.New("insufficient available funds")
	ErrTotalMismatch     = errors.New("account total does not equal available plus held")

	// Dispute errors
	ErrAlreadyDisputed    = errors.New("transaction is already disputed")
	ErrNotDisputed        = errors.New("transaction is not disputed")
	ErrAlreadyChargedBack = errors.New("transaction was charged back")

	// Batch errors
	ErrBatchNotFound    = errors.New("batch report not found")
	ErrStoreUnavailable = errors.New("report store unavailable")
)
