package ledger

import (
	"context"

	"github.com/walletd/walletd/internal/money"
)

// SeedDeposit credits a wallet through a SUCCESS deposit so test fixtures
// keep the balance/transaction invariant intact.
func SeedDeposit(ctx context.Context, store Store, walletID string, amount money.Amount) (Transaction, error) {
	var seeded Transaction
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockWallets(ctx, walletID)
		if err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, walletID, amount); err != nil {
			return err
		}
		seeded, err = tx.InsertTransaction(ctx, Transaction{
			Reference:  NewDepositReference(),
			Kind:       KindDeposit,
			Status:     StatusSuccess,
			Amount:     amount,
			Currency:   locked[walletID].Currency,
			ToWalletID: walletID,
			Metadata:   map[string]any{"source": "seed"},
		})
		return err
	})
	return seeded, err
}
