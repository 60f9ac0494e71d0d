package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotFound indicates no wallet exists for the requested owner and currency.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrTransactionNotFound indicates no transaction carries the requested reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrWalletExists indicates the owner already holds a wallet in that currency.
	ErrWalletExists = errors.New("wallet already exists for user and currency")
	// ErrDuplicateReference indicates the reference is already taken by
	// another transaction.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	// ErrTransactionFinal indicates an attempt to mutate a SUCCESS or FAILED transaction.
	ErrTransactionFinal = errors.New("transaction already finalised")

	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrSelfTransfer     = errors.New("cannot transfer to self")
	ErrCurrencyMismatch = errors.New("wallets do not share a currency")
	ErrMissingReference = errors.New("transaction reference is required")
	ErrMissingEndpoint  = errors.New("transaction needs a source or destination wallet")

	// ErrInsufficientFunds occurs when the source wallet cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidSignature indicates a gateway notification failed authenticity checks.
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// ErrorKind is the caller-facing classification of a ledger failure.
type ErrorKind string

const (
	KindUnknown           ErrorKind = "internal"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindUnauthenticated   ErrorKind = "unauthenticated"
)

// KindOf classifies err. Raw constraint violations that escaped translation
// still map to a stable kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrWalletExists), errors.Is(err, ErrDuplicateReference), errors.Is(err, ErrTransactionFinal):
		return KindConflict
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer), errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrMissingReference), errors.Is(err, ErrMissingEndpoint):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidSignature):
		return KindUnauthenticated
	}

	var ce *ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case ConstraintDuplicate:
			return KindConflict
		case ConstraintCheck:
			return KindInvalidInput
		case ConstraintNotFound:
			return KindNotFound
		}
	}
	return KindUnknown
}

// ConstraintKind distinguishes the store constraint that rejected a write.
type ConstraintKind int

const (
	ConstraintDuplicate ConstraintKind = iota + 1
	ConstraintCheck
	ConstraintNotFound
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintDuplicate:
		return "duplicate"
	case ConstraintCheck:
		return "check"
	case ConstraintNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Constraint names shared by every store implementation.
const (
	ConstraintWalletOwnerCurrency  = "wallets_user_id_currency_key"
	ConstraintWalletNumber         = "wallets_wallet_number_key"
	ConstraintWalletBalance        = "wallets_balance_check"
	ConstraintTransactionReference = "transactions_reference_key"
	ConstraintTransactionWallet    = "transactions_wallet_fkey"
)

// ConstraintError is a store-level constraint violation.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s constraint %s violated: %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s constraint %s violated", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a violation of the named constraint.
func IsConstraint(err error, constraint string) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Constraint == constraint
}
