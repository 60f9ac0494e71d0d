package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/money"
)

const maxNumberAttempts = 3

// Service provisions wallets and serves the balance and history read paths.
type Service struct {
	store           ledger.Store
	numbers         *ledger.NumberAllocator
	defaultCurrency money.Currency
	logger          *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, numbers *ledger.NumberAllocator, defaultCurrency money.Currency, logger *slog.Logger) *Service {
	if numbers == nil {
		numbers = ledger.NewNumberAllocator()
	}
	if defaultCurrency == "" {
		defaultCurrency = money.NGN
	}
	return &Service{store: store, numbers: numbers, defaultCurrency: defaultCurrency, logger: logger}
}

// Currency parses a caller-supplied currency code, falling back to the
// service default when empty.
func (s *Service) Currency(raw string) (money.Currency, error) {
	return money.ParseCurrency(raw, s.defaultCurrency)
}

// DefaultCurrency is the currency used when a request names none.
func (s *Service) DefaultCurrency() money.Currency {
	return s.defaultCurrency
}

// Create provisions the single wallet for (userID, currency). A second call
// fails with ledger.ErrWalletExists.
func (s *Service) Create(ctx context.Context, userID string, currency money.Currency) (ledger.Wallet, error) {
	if userID == "" {
		return ledger.Wallet{}, fmt.Errorf("user id is required")
	}
	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		w, err := s.store.CreateWallet(ctx, ledger.Wallet{
			UserID:   userID,
			Currency: currency,
			Number:   s.numbers.Next(),
		})
		switch {
		case err == nil:
			s.logger.Info("wallet created",
				slog.String("wallet_id", w.ID),
				slog.String("user_id", userID),
				slog.String("currency", currency.String()),
			)
			return w, nil
		case ledger.IsConstraint(err, ledger.ConstraintWalletOwnerCurrency):
			return ledger.Wallet{}, ledger.ErrWalletExists
		case ledger.IsConstraint(err, ledger.ConstraintWalletNumber):
			s.logger.Warn("wallet number collision, retrying", slog.Int("attempt", attempt))
			lastErr = err
		default:
			return ledger.Wallet{}, fmt.Errorf("create wallet: %w", err)
		}
	}
	return ledger.Wallet{}, fmt.Errorf("allocate wallet number: %w", lastErr)
}

// Ensure returns the user's wallet in currency, creating it on first use.
// Concurrent callers converge on the same wallet.
func (s *Service) Ensure(ctx context.Context, userID string, currency money.Currency) (ledger.Wallet, error) {
	w, err := s.store.WalletByOwner(ctx, userID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		return ledger.Wallet{}, err
	}
	w, err = s.Create(ctx, userID, currency)
	if errors.Is(err, ledger.ErrWalletExists) {
		return s.store.WalletByOwner(ctx, userID, currency)
	}
	return w, err
}

// Get returns the user's wallet in currency.
func (s *Service) Get(ctx context.Context, userID string, currency money.Currency) (ledger.Wallet, error) {
	return s.store.WalletByOwner(ctx, userID, currency)
}

// Balance reads the committed balance of the user's wallet in currency.
func (s *Service) Balance(ctx context.Context, userID string, currency money.Currency) (Balance, error) {
	w, err := s.store.WalletByOwner(ctx, userID, currency)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, WalletNumber: w.Number, Amount: w.Balance, Currency: w.Currency}, nil
}

// Transactions lists every transaction touching any of the user's wallets,
// newest first. A user without wallets has an empty history.
func (s *Service) Transactions(ctx context.Context, userID string) ([]Entry, error) {
	wallets, err := s.store.WalletsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	if len(wallets) == 0 {
		return []Entry{}, nil
	}
	owned := make(map[string]bool, len(wallets))
	ids := make([]string, 0, len(wallets))
	for _, w := range wallets {
		owned[w.ID] = true
		ids = append(ids, w.ID)
	}

	txs, err := s.store.TransactionsByWallets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	entries := make([]Entry, 0, len(txs))
	for _, t := range txs {
		dir := DirectionIn
		if owned[t.FromWalletID] {
			dir = DirectionOut
		}
		entries = append(entries, Entry{Transaction: t, Direction: dir})
	}
	return entries, nil
}
