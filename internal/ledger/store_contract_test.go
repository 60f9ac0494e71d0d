package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/walletd/internal/money"
)

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	numbers := NewNumberAllocator()

	createWallet := func(t *testing.T, s Store, userID string) Wallet {
		t.Helper()
		w, err := s.CreateWallet(context.Background(), Wallet{UserID: userID, Currency: money.NGN, Number: numbers.Next()})
		require.NoError(t, err)
		return w
	}

	t.Run("unique owner and currency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		userID := uuid.NewString()
		createWallet(t, s, userID)

		_, err := s.CreateWallet(ctx, Wallet{UserID: userID, Currency: money.NGN, Number: numbers.Next()})
		var ce *ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ConstraintDuplicate, ce.Kind)
		assert.Equal(t, ConstraintWalletOwnerCurrency, ce.Constraint)

		usd, err := s.CreateWallet(ctx, Wallet{UserID: userID, Currency: money.USD, Number: numbers.Next()})
		require.NoError(t, err)
		assert.Equal(t, money.Amount(0), usd.Balance)

		wallets, err := s.WalletsByOwner(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, wallets, 2)
	})

	t.Run("unique wallet number", func(t *testing.T) {
		s := newStore(t)
		w := createWallet(t, s, uuid.NewString())
		_, err := s.CreateWallet(context.Background(), Wallet{UserID: uuid.NewString(), Currency: money.NGN, Number: w.Number})
		assert.True(t, IsConstraint(err, ConstraintWalletNumber), "got %v", err)
	})

	t.Run("missing wallet", func(t *testing.T) {
		s := newStore(t)
		_, err := s.WalletByOwner(context.Background(), uuid.NewString(), money.NGN)
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("rollback discards every write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		abort := errors.New("abort")

		err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockWallets(ctx, w.ID); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(ctx, w.ID, 700); err != nil {
				return err
			}
			if _, err := tx.InsertTransaction(ctx, Transaction{
				Reference: "ref-" + uuid.NewString(), Kind: KindDeposit, Status: StatusSuccess,
				Amount: 700, Currency: money.NGN, ToWalletID: w.ID,
			}); err != nil {
				return err
			}
			return abort
		})
		require.ErrorIs(t, err, abort)

		got, err := s.WalletByOwner(ctx, w.UserID, money.NGN)
		require.NoError(t, err)
		assert.Equal(t, money.Amount(0), got.Balance)

		txs, err := s.TransactionsByWallets(ctx, []string{w.ID})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("balance never negative", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		_, err := SeedDeposit(ctx, s, w.ID, 100)
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.AdjustBalance(ctx, w.ID, -101)
			return err
		})
		var ce *ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ConstraintCheck, ce.Kind)

		got, err := s.WalletByOwner(ctx, w.UserID, money.NGN)
		require.NoError(t, err)
		assert.Equal(t, money.Amount(100), got.Balance)
	})

	t.Run("balance overflow rejected as check violation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		_, err := SeedDeposit(ctx, s, w.ID, math.MaxInt64-10)
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockWallets(ctx, w.ID); err != nil {
				return err
			}
			_, err := tx.AdjustBalance(ctx, w.ID, 11)
			return err
		})
		assert.True(t, IsConstraint(err, ConstraintWalletBalance), "got %v", err)
		assert.Equal(t, KindInvalidInput, KindOf(err))

		got, err := s.WalletByOwner(ctx, w.UserID, money.NGN)
		require.NoError(t, err)
		assert.Equal(t, money.Amount(math.MaxInt64-10), got.Balance)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		ref := "dup-" + uuid.NewString()

		_, err := s.CreateTransaction(ctx, Transaction{
			Reference: ref, Kind: KindDeposit, Status: StatusPending, Amount: 10, Currency: money.NGN, ToWalletID: w.ID,
		})
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.InsertTransaction(ctx, Transaction{
				Reference: ref, Kind: KindDeposit, Status: StatusSuccess, Amount: 10, Currency: money.NGN, ToWalletID: w.ID,
			})
			return err
		})
		assert.True(t, IsConstraint(err, ConstraintTransactionReference), "got %v", err)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("create transaction only accepts pending", func(t *testing.T) {
		s := newStore(t)
		w := createWallet(t, s, uuid.NewString())
		_, err := s.CreateTransaction(context.Background(), Transaction{
			Reference: "ref-" + uuid.NewString(), Kind: KindDeposit, Status: StatusSuccess, Amount: 10, Currency: money.NGN, ToWalletID: w.ID,
		})
		assert.ErrorIs(t, err, ErrTransactionFinal)
	})

	t.Run("settle pending once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		pending, err := s.CreateTransaction(ctx, Transaction{
			Reference: "ref-" + uuid.NewString(), Kind: KindDeposit, Status: StatusPending, Amount: 500,
			Currency: money.NGN, ToWalletID: w.ID, Metadata: map[string]any{"channel": "card"},
		})
		require.NoError(t, err)

		err = s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			locked, err := tx.LockTransaction(ctx, pending.Reference)
			if err != nil {
				return err
			}
			settled, err := tx.SettleTransaction(ctx, locked.ID, StatusSuccess, 450, map[string]any{"gateway": "paystack"})
			if err != nil {
				return err
			}
			assert.Equal(t, StatusSuccess, settled.Status)
			return nil
		})
		require.NoError(t, err)

		got, err := s.TransactionByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, got.Status)
		assert.Equal(t, money.Amount(450), got.Amount)
		assert.Equal(t, "card", got.Metadata["channel"])
		assert.Equal(t, "paystack", got.Metadata["gateway"])

		err = s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.SettleTransaction(ctx, got.ID, StatusFailed, 450, nil)
			return err
		})
		assert.ErrorIs(t, err, ErrTransactionFinal)
	})

	t.Run("history newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		w := createWallet(t, s, uuid.NewString())
		first, err := SeedDeposit(ctx, s, w.ID, 100)
		require.NoError(t, err)
		second, err := SeedDeposit(ctx, s, w.ID, 200)
		require.NoError(t, err)

		txs, err := s.TransactionsByWallets(ctx, []string{w.ID})
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, second.Reference, txs[0].Reference)
		assert.Equal(t, first.Reference, txs[1].Reference)
	})

	t.Run("lock missing wallet", func(t *testing.T) {
		s := newStore(t)
		err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
			_, err := tx.LockWallets(ctx, uuid.NewString())
			return err
		})
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("cancelled context rolls back", func(t *testing.T) {
		s := newStore(t)
		w := createWallet(t, s, uuid.NewString())
		ctx, cancel := context.WithCancel(context.Background())

		err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockWallets(ctx, w.ID); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(ctx, w.ID, 50); err != nil {
				return err
			}
			cancel()
			return nil
		})
		require.Error(t, err)

		got, err := s.WalletByOwner(context.Background(), w.UserID, money.NGN)
		require.NoError(t, err)
		assert.Equal(t, money.Amount(0), got.Balance)
	})
}
