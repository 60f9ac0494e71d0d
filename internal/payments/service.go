package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/money"
	"github.com/walletd/walletd/internal/notification"
)

// Service moves funds between two users' wallets as one atomic ledger unit.
type Service struct {
	store           ledger.Store
	defaultCurrency money.Currency
	notifier        notification.Notifier
	logger          *slog.Logger
	now             func() time.Time
}

// NewService constructs a payment service.
func NewService(store ledger.Store, defaultCurrency money.Currency, notifier notification.Notifier, logger *slog.Logger) *Service {
	if defaultCurrency == "" {
		defaultCurrency = money.NGN
	}
	return &Service{
		store:           store,
		defaultCurrency: defaultCurrency,
		notifier:        notifier,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures the data needed to move funds between users.
type TransferInput struct {
	FromUserID string
	ToUserID   string
	Amount     money.Amount
	Currency   money.Currency
}

// TransferResult describes the committed outcome of a transfer.
type TransferResult struct {
	Status      ledger.Status
	Reference   string
	Amount      money.Amount
	Currency    money.Currency
	FromUserID  string
	ToUserID    string
	FromBalance money.Amount
	ToBalance   money.Amount
	CompletedAt time.Time
}

// Transfer debits the sender and credits the receiver in the same unit of
// work and records one SUCCESS transaction. Both wallet rows are locked in
// ledger.LockOrder before either balance is read for the funds check.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := in.Amount.Validate(); err != nil {
		return TransferResult{}, ledger.ErrInvalidAmount
	}
	if in.FromUserID == "" || in.ToUserID == "" {
		return TransferResult{}, fmt.Errorf("sender and receiver are required: %w", ledger.ErrMissingEndpoint)
	}
	if in.FromUserID == in.ToUserID {
		return TransferResult{}, ledger.ErrSelfTransfer
	}
	currency := in.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	var result TransferResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		sender, err := tx.WalletByOwner(ctx, in.FromUserID, currency)
		if err != nil {
			return fmt.Errorf("load sender wallet: %w", err)
		}
		receiver, receiverErr := tx.WalletByOwner(ctx, in.ToUserID, currency)
		if receiverErr != nil && !errors.Is(receiverErr, ledger.ErrWalletNotFound) {
			return fmt.Errorf("load receiver wallet: %w", receiverErr)
		}

		ids := []string{sender.ID}
		if receiverErr == nil {
			ids = append(ids, receiver.ID)
		}
		locked, err := tx.LockWallets(ctx, ids...)
		if err != nil {
			return fmt.Errorf("lock wallets: %w", err)
		}
		if locked[sender.ID].Balance < in.Amount {
			return ledger.ErrInsufficientFunds
		}
		if receiverErr != nil {
			return fmt.Errorf("load receiver wallet: %w", receiverErr)
		}

		fromBalance, err := tx.AdjustBalance(ctx, sender.ID, -in.Amount)
		if err != nil {
			if ledger.IsConstraint(err, ledger.ConstraintWalletBalance) {
				return ledger.ErrInsufficientFunds
			}
			return fmt.Errorf("debit sender: %w", err)
		}
		toBalance, err := tx.AdjustBalance(ctx, receiver.ID, in.Amount)
		if err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}

		recorded, err := tx.InsertTransaction(ctx, ledger.Transaction{
			Reference:    ledger.NewTransferReference(),
			Kind:         ledger.KindTransfer,
			Status:       ledger.StatusSuccess,
			Amount:       in.Amount,
			Currency:     currency,
			FromWalletID: sender.ID,
			ToWalletID:   receiver.ID,
			InitiatedBy:  in.FromUserID,
			Metadata: map[string]any{
				"from_wallet_number": sender.Number,
				"to_wallet_number":   receiver.Number,
			},
		})
		if err != nil {
			return fmt.Errorf("record transfer: %w", err)
		}

		result = TransferResult{
			Status:      recorded.Status,
			Reference:   recorded.Reference,
			Amount:      in.Amount,
			Currency:    currency,
			FromUserID:  in.FromUserID,
			ToUserID:    in.ToUserID,
			FromBalance: fromBalance,
			ToBalance:   toBalance,
			CompletedAt: s.now(),
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.Info("transfer completed",
		slog.String("reference", result.Reference),
		slog.String("from_user_id", in.FromUserID),
		slog.String("to_user_id", in.ToUserID),
		slog.Int64("amount", int64(in.Amount)),
		slog.String("currency", currency.String()),
	)
	s.notify(ctx, result)
	return result, nil
}

func (s *Service) notify(ctx context.Context, res TransferResult) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferCompleted,
		Destination: res.ToUserID,
		Reference:   res.Reference,
		Amount:      res.Amount,
		Currency:    res.Currency,
		Body:        fmt.Sprintf("You received %s", res.Amount.Format(res.Currency)),
	})
	if err != nil {
		s.logger.Warn("transfer notification failed", slog.String("reference", res.Reference), slog.Any("error", err))
	}
}
