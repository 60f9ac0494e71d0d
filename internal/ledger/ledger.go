package ledger

import (
	"context"
	"time"

	"github.com/walletd/walletd/internal/money"
)

// Kind classifies a transaction.
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindTransfer Kind = "TRANSFER"
)

// Status is the lifecycle state of a transaction. PENDING -> SUCCESS is the
// only transition the ledger allows; SUCCESS and FAILED are final.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Final reports whether the status can no longer change.
func (s Status) Final() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Wallet is the per-user, per-currency balance holder.
type Wallet struct {
	ID        string
	UserID    string
	Currency  money.Currency
	Number    string
	Balance   money.Amount
	CreatedAt time.Time
}

// Transaction is an immutable record of a balance-changing event. Reference
// is globally unique and doubles as the idempotency key. An empty
// FromWalletID or ToWalletID means the side is outside the ledger.
type Transaction struct {
	ID           string
	Seq          int64
	Reference    string
	Kind         Kind
	Status       Status
	Amount       money.Amount
	Currency     money.Currency
	FromWalletID string
	ToWalletID   string
	InitiatedBy  string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Validate checks the structural invariants every persisted transaction must
// satisfy.
func (t Transaction) Validate() error {
	if t.Reference == "" {
		return ErrMissingReference
	}
	if err := t.Amount.Validate(); err != nil {
		return ErrInvalidAmount
	}
	if t.FromWalletID == "" && t.ToWalletID == "" {
		return ErrMissingEndpoint
	}
	if t.FromWalletID != "" && t.FromWalletID == t.ToWalletID {
		return ErrSelfTransfer
	}
	return nil
}

// Reader is the read path of the ledger store. Every read observes only
// committed state.
type Reader interface {
	WalletByOwner(ctx context.Context, userID string, currency money.Currency) (Wallet, error)
	WalletsByOwner(ctx context.Context, userID string) ([]Wallet, error)
	TransactionByReference(ctx context.Context, reference string) (Transaction, error)
	// TransactionsByWallets returns every transaction touching any of the
	// wallets, newest first, ties broken by insertion order.
	TransactionsByWallets(ctx context.Context, walletIDs []string) ([]Transaction, error)
}

// Store is the durable, constraint-enforcing ledger store.
type Store interface {
	Reader

	// CreateWallet inserts a zero-balance wallet. Duplicate (user, currency)
	// or wallet number surfaces as a *ConstraintError of kind Duplicate.
	CreateWallet(ctx context.Context, w Wallet) (Wallet, error)

	// CreateTransaction inserts a single transaction outside of a unit of
	// work. It never touches balances, so it only accepts PENDING records.
	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)

	// WithinTx runs fn as one atomic, isolated unit. Any error returned by fn
	// (or a cancelled ctx) rolls back every write fn made.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of reads and writes available inside a unit of work.
type Tx interface {
	WalletByOwner(ctx context.Context, userID string, currency money.Currency) (Wallet, error)

	// LockWallets acquires row locks on the given wallets in LockOrder and
	// returns their locked state keyed by id.
	LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error)

	// LockTransaction reads and locks a transaction by reference.
	LockTransaction(ctx context.Context, reference string) (Transaction, error)

	// AdjustBalance adds delta to a locked wallet and returns the new
	// balance. A result below zero surfaces as a *ConstraintError of kind
	// Check.
	AdjustBalance(ctx context.Context, walletID string, delta money.Amount) (money.Amount, error)

	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)

	// SettleTransaction moves a PENDING transaction to a final status,
	// replacing its amount and merging metadata.
	SettleTransaction(ctx context.Context, id string, status Status, amount money.Amount, metadata map[string]any) (Transaction, error)
}
