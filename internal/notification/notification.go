package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/walletd/walletd/internal/money"
)

const (
	// KindTransferCompleted is published after a transfer commits.
	KindTransferCompleted = "transfer.completed"
	// KindDepositConfirmed is published after a deposit credit commits.
	KindDepositConfirmed = "deposit.confirmed"
)

// Message describes a committed ledger event.
type Message struct {
	Kind        string
	Destination string
	Reference   string
	Amount      money.Amount
	Currency    money.Currency
	Body        string
}

// Notifier delivers notifications to downstream systems. Callers invoke it
// only after the ledger unit has committed.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("reference", message.Reference),
		slog.Int64("amount", int64(message.Amount)),
		slog.String("currency", message.Currency.String()),
		slog.String("body", message.Body),
	)
	return nil
}

// Multi fans a message out to every notifier and joins their failures.
type Multi []Notifier

// Send delivers to all notifiers even when one fails.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
