package ledger

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walletd/walletd/internal/money"
)

type ownerKey struct {
	userID   string
	currency money.Currency
}

// MemoryStore is a concurrency-safe in-memory ledger store useful for unit
// tests and local development. Units of work are fully serialised and apply
// their writes only on success, so it enforces the same constraints and
// rollback behaviour as the Postgres store.
type MemoryStore struct {
	mu sync.RWMutex

	wallets  map[string]Wallet
	byOwner  map[ownerKey]string
	byNumber map[string]string

	transactions []Transaction
	byReference  map[string]int
	seq          int64

	now func() time.Time
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *MemoryStore {
	return &MemoryStore{
		wallets:     make(map[string]Wallet),
		byOwner:     make(map[ownerKey]string),
		byNumber:    make(map[string]string),
		byReference: make(map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) WalletByOwner(_ context.Context, userID string, currency money.Currency) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerKey{userID, currency}]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

func (s *MemoryStore) WalletsByOwner(_ context.Context, userID string) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Wallet
	for key, id := range s.byOwner {
		if key.userID == userID {
			out = append(out, s.wallets[id])
		}
	}
	slices.SortFunc(out, func(a, b Wallet) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TransactionByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return cloneTransaction(s.transactions[idx]), nil
}

func (s *MemoryStore) TransactionsByWallets(_ context.Context, walletIDs []string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if slices.Contains(walletIDs, t.FromWalletID) || slices.Contains(walletIDs, t.ToWalletID) {
			out = append(out, cloneTransaction(t))
		}
	}
	slices.SortStableFunc(out, func(a, b Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.Seq - a.Seq)
	})
	return out, nil
}

func (s *MemoryStore) CreateWallet(_ context.Context, w Wallet) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byOwner[ownerKey{w.UserID, w.Currency}]; exists {
		return Wallet{}, &ConstraintError{Kind: ConstraintDuplicate, Constraint: ConstraintWalletOwnerCurrency}
	}
	if _, exists := s.byNumber[w.Number]; exists {
		return Wallet{}, &ConstraintError{Kind: ConstraintDuplicate, Constraint: ConstraintWalletNumber}
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.Balance = 0
	w.CreatedAt = s.now()
	s.wallets[w.ID] = w
	s.byOwner[ownerKey{w.UserID, w.Currency}] = w.ID
	s.byNumber[w.Number] = w.ID
	return w, nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, t Transaction) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, fmt.Errorf("create %s transaction outside a unit of work: %w", t.Status, ErrTransactionFinal)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkInsert(t, nil); err != nil {
		return Transaction{}, err
	}
	return s.appendTransaction(t), nil
}

// WithinTx holds the store's write lock for the whole unit and stages writes
// until fn returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:   s,
		wallets: make(map[string]Wallet),
		settled: make(map[int]Transaction),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	maps.Copy(s.wallets, tx.wallets)
	for idx, t := range tx.settled {
		s.transactions[idx] = t
	}
	for _, t := range tx.inserted {
		s.appendTransaction(t)
	}
	return nil
}

func (s *MemoryStore) checkInsert(t Transaction, staged []Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := s.byReference[t.Reference]; exists {
		return &ConstraintError{Kind: ConstraintDuplicate, Constraint: ConstraintTransactionReference}
	}
	for _, st := range staged {
		if st.Reference == t.Reference {
			return &ConstraintError{Kind: ConstraintDuplicate, Constraint: ConstraintTransactionReference}
		}
	}
	for _, id := range []string{t.FromWalletID, t.ToWalletID} {
		if id == "" {
			continue
		}
		if _, ok := s.wallets[id]; !ok {
			return &ConstraintError{Kind: ConstraintNotFound, Constraint: ConstraintTransactionWallet}
		}
	}
	return nil
}

func (s *MemoryStore) appendTransaction(t Transaction) Transaction {
	s.seq++
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Seq = s.seq
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t = cloneTransaction(t)
	s.byReference[t.Reference] = len(s.transactions)
	s.transactions = append(s.transactions, t)
	return cloneTransaction(t)
}

type memoryTx struct {
	store    *MemoryStore
	wallets  map[string]Wallet
	inserted []Transaction
	settled  map[int]Transaction
}

func (tx *memoryTx) wallet(id string) (Wallet, bool) {
	if w, ok := tx.wallets[id]; ok {
		return w, true
	}
	w, ok := tx.store.wallets[id]
	return w, ok
}

func (tx *memoryTx) WalletByOwner(_ context.Context, userID string, currency money.Currency) (Wallet, error) {
	id, ok := tx.store.byOwner[ownerKey{userID, currency}]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	w, _ := tx.wallet(id)
	return w, nil
}

// LockWallets only resolves state; the unit already holds the store lock.
func (tx *memoryTx) LockWallets(_ context.Context, ids ...string) (map[string]Wallet, error) {
	locked := make(map[string]Wallet, len(ids))
	for _, id := range LockOrder(ids...) {
		w, ok := tx.wallet(id)
		if !ok {
			return nil, ErrWalletNotFound
		}
		locked[id] = w
	}
	return locked, nil
}

func (tx *memoryTx) LockTransaction(_ context.Context, reference string) (Transaction, error) {
	for _, t := range tx.inserted {
		if t.Reference == reference {
			return cloneTransaction(t), nil
		}
	}
	idx, ok := tx.store.byReference[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if t, ok := tx.settled[idx]; ok {
		return cloneTransaction(t), nil
	}
	return cloneTransaction(tx.store.transactions[idx]), nil
}

func (tx *memoryTx) AdjustBalance(_ context.Context, walletID string, delta money.Amount) (money.Amount, error) {
	w, ok := tx.wallet(walletID)
	if !ok {
		return 0, ErrWalletNotFound
	}
	if w.Balance+delta < 0 || (delta > 0 && w.Balance > math.MaxInt64-delta) {
		return 0, &ConstraintError{Kind: ConstraintCheck, Constraint: ConstraintWalletBalance}
	}
	w.Balance += delta
	tx.wallets[walletID] = w
	return w.Balance, nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t Transaction) (Transaction, error) {
	if err := tx.store.checkInsert(t, tx.inserted); err != nil {
		return Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = tx.store.now()
	}
	t = cloneTransaction(t)
	tx.inserted = append(tx.inserted, t)
	return cloneTransaction(t), nil
}

func (tx *memoryTx) SettleTransaction(_ context.Context, id string, status Status, amount money.Amount, metadata map[string]any) (Transaction, error) {
	for idx, t := range tx.store.transactions {
		if t.ID != id {
			continue
		}
		if staged, ok := tx.settled[idx]; ok {
			t = staged
		}
		if t.Status != StatusPending {
			return Transaction{}, fmt.Errorf("settle %s transaction: %w", t.Status, ErrTransactionFinal)
		}
		if err := amount.Validate(); err != nil {
			return Transaction{}, &ConstraintError{Kind: ConstraintCheck, Constraint: "transactions_amount_check"}
		}
		t = cloneTransaction(t)
		t.Status = status
		t.Amount = amount
		if t.Metadata == nil {
			t.Metadata = map[string]any{}
		}
		maps.Copy(t.Metadata, metadata)
		tx.settled[idx] = t
		return cloneTransaction(t), nil
	}
	return Transaction{}, ErrTransactionNotFound
}

func cloneTransaction(t Transaction) Transaction {
	if t.Metadata != nil {
		t.Metadata = maps.Clone(t.Metadata)
	}
	return t
}
