package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/money"
	"github.com/walletd/walletd/internal/notification"
	"github.com/walletd/walletd/internal/wallet"
)

const (
	// StatusCredited means this call credited the wallet.
	StatusCredited = "credited"
	// StatusAlreadyProcessed means an earlier delivery already credited it.
	StatusAlreadyProcessed = "already_processed"

	sourceWebhook      = "webhook"
	sourceManualVerify = "manual_verify"

	maxConfirmAttempts = 2
)

var errAlreadyProcessed = errors.New("deposit already processed")

// CustomerResolver maps a gateway customer to a user id when a notification
// arrives for a reference this service never issued.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, customer Customer) (string, error)
}

// Options carries the optional collaborators of the deposit reconciler.
type Options struct {
	FallbackEmail string
	Resolver      CustomerResolver
}

// Service initiates gateway deposits and reconciles their confirmations
// into exactly one wallet credit per reference.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	gateway  Gateway
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options
}

// NewService builds the deposit reconciler.
func NewService(store ledger.Store, wallets *wallet.Service, gateway Gateway, notifier notification.Notifier, logger *slog.Logger, opts Options) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if gateway == nil {
		gateway = &StaticGateway{}
	}
	return &Service{store: store, wallets: wallets, gateway: gateway, notifier: notifier, logger: logger, opts: opts}, nil
}

// DepositInput captures a deposit initiation.
type DepositInput struct {
	UserID   string
	Email    string
	Amount   money.Amount
	Currency money.Currency
}

// DepositResult is the outcome of a deposit initiation.
type DepositResult struct {
	Reference        string
	AuthorizationURL string
	Status           ledger.Status
}

// InitiateDeposit records a PENDING deposit against the user's wallet,
// creating the wallet on first use, then asks the gateway for a checkout.
// The pending row is committed before the gateway is contacted.
func (s *Service) InitiateDeposit(ctx context.Context, in DepositInput) (DepositResult, error) {
	if err := in.Amount.Validate(); err != nil {
		return DepositResult{}, ledger.ErrInvalidAmount
	}
	currency := in.Currency
	if currency == "" {
		currency = s.wallets.DefaultCurrency()
	}
	email := in.Email
	if email == "" {
		email = s.opts.FallbackEmail
	}

	w, err := s.wallets.Ensure(ctx, in.UserID, currency)
	if err != nil {
		return DepositResult{}, fmt.Errorf("resolve wallet: %w", err)
	}

	pending, err := s.store.CreateTransaction(ctx, ledger.Transaction{
		Reference:   ledger.NewDepositReference(),
		Kind:        ledger.KindDeposit,
		Status:      ledger.StatusPending,
		Amount:      in.Amount,
		Currency:    currency,
		ToWalletID:  w.ID,
		InitiatedBy: in.UserID,
		Metadata: map[string]any{
			"requested_amount": int64(in.Amount),
			"email":            email,
		},
	})
	if err != nil {
		return DepositResult{}, fmt.Errorf("record pending deposit: %w", err)
	}

	auth, err := s.gateway.InitializePayment(ctx, PaymentRequest{
		Amount:    in.Amount,
		Currency:  currency,
		Email:     email,
		Reference: pending.Reference,
		UserID:    in.UserID,
	})
	if err != nil {
		s.logger.Error("deposit initialization failed",
			slog.String("reference", pending.Reference),
			slog.Any("error", err),
		)
		return DepositResult{}, fmt.Errorf("initialize payment: %w", err)
	}

	s.logger.Info("deposit initiated",
		slog.String("reference", pending.Reference),
		slog.String("wallet_id", w.ID),
		slog.Int64("amount", int64(in.Amount)),
	)
	return DepositResult{Reference: pending.Reference, AuthorizationURL: auth.AuthorizationURL, Status: pending.Status}, nil
}

// Confirmation is one delivery of a gateway success notification.
type Confirmation struct {
	Reference string
	Amount    money.Amount
	Currency  money.Currency
	Customer  Customer
	// UserID is the correlation hint the gateway echoes back from initiation.
	UserID  string
	Channel string
	PaidAt  string
	Source  string
	// Authenticated is set once the notification's signature has been checked.
	Authenticated bool
}

// ConfirmResult is the outcome of a confirmation.
type ConfirmResult struct {
	Status    string
	Reference string
	Amount    money.Amount
	WalletID  string
}

// ConfirmDeposit credits the destination wallet for a confirmed charge.
// Redelivering the same reference, sequentially or concurrently, credits
// the wallet at most once; later deliveries report StatusAlreadyProcessed.
func (s *Service) ConfirmDeposit(ctx context.Context, c Confirmation) (ConfirmResult, error) {
	if !c.Authenticated {
		return ConfirmResult{}, ledger.ErrInvalidSignature
	}
	if c.Reference == "" {
		return ConfirmResult{}, ledger.ErrMissingReference
	}
	if err := c.Amount.Validate(); err != nil {
		return ConfirmResult{}, ledger.ErrInvalidAmount
	}

	var (
		res ConfirmResult
		err error
	)
	for attempt := 1; attempt <= maxConfirmAttempts; attempt++ {
		res, err = s.confirmOnce(ctx, c)
		// A PENDING row can appear between the lookup and the insert; retry
		// so the credit settles that row instead of colliding with it.
		if !ledger.IsConstraint(err, ledger.ConstraintTransactionReference) {
			break
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, errAlreadyProcessed), ledger.IsConstraint(err, ledger.ConstraintTransactionReference):
		s.logger.Warn("deposit already processed", slog.String("reference", c.Reference), slog.String("source", c.Source))
		return ConfirmResult{Status: StatusAlreadyProcessed, Reference: c.Reference}, nil
	default:
		return ConfirmResult{}, err
	}

	s.logger.Info("deposit confirmed",
		slog.String("reference", res.Reference),
		slog.String("wallet_id", res.WalletID),
		slog.Int64("amount", int64(res.Amount)),
		slog.String("source", c.Source),
	)
	return res, nil
}

func (s *Service) confirmOnce(ctx context.Context, c Confirmation) (ConfirmResult, error) {
	existing, err := s.store.TransactionByReference(ctx, c.Reference)
	hasPending := false
	var walletID string
	switch {
	case err == nil:
		if existing.Kind != ledger.KindDeposit {
			return ConfirmResult{}, ledger.ErrDuplicateReference
		}
		switch existing.Status {
		case ledger.StatusSuccess:
			return ConfirmResult{}, errAlreadyProcessed
		case ledger.StatusFailed:
			return ConfirmResult{}, fmt.Errorf("deposit %s: %w", c.Reference, ledger.ErrTransactionFinal)
		}
		if c.Currency != "" && c.Currency != existing.Currency {
			return ConfirmResult{}, ledger.ErrCurrencyMismatch
		}
		hasPending = true
		walletID = existing.ToWalletID
	case errors.Is(err, ledger.ErrTransactionNotFound):
		w, err := s.resolveWallet(ctx, c)
		if err != nil {
			return ConfirmResult{}, err
		}
		walletID = w.ID
	default:
		return ConfirmResult{}, fmt.Errorf("lookup deposit: %w", err)
	}

	var (
		credited ledger.Transaction
		owner    string
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if hasPending {
			locked, err := tx.LockTransaction(ctx, c.Reference)
			if err != nil {
				return err
			}
			if locked.Status == ledger.StatusSuccess {
				return errAlreadyProcessed
			}
			if locked.Status.Final() {
				return ledger.ErrTransactionFinal
			}
			existing = locked
		}

		wallets, err := tx.LockWallets(ctx, walletID)
		if err != nil {
			return err
		}
		w := wallets[walletID]
		owner = w.UserID
		if _, err := tx.AdjustBalance(ctx, walletID, c.Amount); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}

		meta := s.provenance(c)
		if hasPending {
			if existing.Amount != c.Amount {
				s.logger.Warn("confirmed amount differs from requested",
					slog.String("reference", c.Reference),
					slog.Int64("requested", int64(existing.Amount)),
					slog.Int64("confirmed", int64(c.Amount)),
				)
			}
			credited, err = tx.SettleTransaction(ctx, existing.ID, ledger.StatusSuccess, c.Amount, meta)
			return err
		}
		credited, err = tx.InsertTransaction(ctx, ledger.Transaction{
			Reference:   c.Reference,
			Kind:        ledger.KindDeposit,
			Status:      ledger.StatusSuccess,
			Amount:      c.Amount,
			Currency:    w.Currency,
			ToWalletID:  walletID,
			InitiatedBy: w.UserID,
			Metadata:    meta,
		})
		return err
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	s.notify(ctx, owner, credited)
	return ConfirmResult{Status: StatusCredited, Reference: credited.Reference, Amount: credited.Amount, WalletID: walletID}, nil
}

// resolveWallet finds the destination for a notification that has no
// pending record: the echoed user id first, then the customer resolver.
func (s *Service) resolveWallet(ctx context.Context, c Confirmation) (ledger.Wallet, error) {
	currency := c.Currency
	if currency == "" {
		currency = s.wallets.DefaultCurrency()
	}
	userID := c.UserID
	if userID == "" && s.opts.Resolver != nil {
		resolved, err := s.opts.Resolver.ResolveCustomer(ctx, c.Customer)
		if err != nil {
			return ledger.Wallet{}, fmt.Errorf("resolve customer: %w", err)
		}
		userID = resolved
	}
	if userID == "" {
		return ledger.Wallet{}, ledger.ErrWalletNotFound
	}
	return s.wallets.Get(ctx, userID, currency)
}

func (s *Service) provenance(c Confirmation) map[string]any {
	meta := map[string]any{
		"gateway":      "paystack",
		"source":       c.Source,
		"confirmed_at": time.Now().UTC().Format(time.RFC3339),
	}
	if c.Channel != "" {
		meta["channel"] = c.Channel
	}
	if c.PaidAt != "" {
		meta["paid_at"] = c.PaidAt
	}
	if c.Customer.Email != "" {
		meta["customer_email"] = c.Customer.Email
	}
	if c.Customer.ID != "" {
		meta["customer_id"] = c.Customer.ID
	}
	return meta
}

func (s *Service) notify(ctx context.Context, owner string, t ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindDepositConfirmed,
		Destination: owner,
		Reference:   t.Reference,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Body:        fmt.Sprintf("Your wallet was credited with %s", t.Amount.Format(t.Currency)),
	})
	if err != nil {
		s.logger.Warn("deposit notification failed", slog.String("reference", t.Reference), slog.Any("error", err))
	}
}

// VerifyDeposit asks the gateway about a deposit the caller initiated and
// confirms it when the gateway reports it paid.
func (s *Service) VerifyDeposit(ctx context.Context, userID, reference string) (ledger.Transaction, error) {
	stored, err := s.DepositStatus(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if stored.InitiatedBy != userID {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	if stored.Status.Final() {
		return stored, nil
	}

	v, err := s.gateway.VerifyPayment(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("verify payment: %w", err)
	}
	if !v.Paid() {
		return stored, nil
	}
	if _, err := s.ConfirmDeposit(ctx, Confirmation{
		Reference:     reference,
		Amount:        v.Amount,
		Currency:      v.Currency,
		Customer:      v.Customer,
		UserID:        userID,
		Channel:       v.Channel,
		PaidAt:        v.PaidAt,
		Source:        sourceManualVerify,
		Authenticated: true,
	}); err != nil {
		return ledger.Transaction{}, err
	}
	return s.DepositStatus(ctx, reference)
}

// DepositStatus returns the stored deposit for reference. Transfers sharing
// the reference namespace are not visible here.
func (s *Service) DepositStatus(ctx context.Context, reference string) (ledger.Transaction, error) {
	t, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if t.Kind != ledger.KindDeposit {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return t, nil
}
