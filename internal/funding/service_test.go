package funding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/logging"
	"github.com/walletd/walletd/internal/money"
	"github.com/walletd/walletd/internal/notification"
	"github.com/walletd/walletd/internal/wallet"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type failingGateway struct{}

func (failingGateway) InitializePayment(context.Context, PaymentRequest) (Authorization, error) {
	return Authorization{}, errors.Join(ErrGateway, errors.New("connection refused"))
}

func (failingGateway) VerifyPayment(context.Context, string) (Verification, error) {
	return Verification{}, errors.Join(ErrGateway, errors.New("connection refused"))
}

type harness struct {
	store    *ledger.MemoryStore
	wallets  *wallet.Service
	svc      *Service
	notifier *recordingNotifier
}

func newHarness(t *testing.T, gateway Gateway) *harness {
	t.Helper()
	store := ledger.NewInMemory()
	wallets := wallet.NewService(store, ledger.NewNumberAllocator(), money.NGN, logging.Discard())
	n := &recordingNotifier{}
	svc, err := NewService(store, wallets, gateway, n, logging.Discard(), Options{FallbackEmail: "deposits@example.com"})
	require.NoError(t, err)
	return &harness{store: store, wallets: wallets, svc: svc, notifier: n}
}

func (h *harness) balance(t *testing.T, userID string) money.Amount {
	t.Helper()
	bal, err := h.wallets.Balance(context.Background(), userID, money.NGN)
	require.NoError(t, err)
	return bal.Amount
}

func (h *harness) rowsFor(t *testing.T, userID, reference string) int {
	t.Helper()
	entries, err := h.wallets.Transactions(context.Background(), userID)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.Reference == reference {
			n++
		}
	}
	return n
}

func webhookConfirmation(userID, reference string, amount money.Amount) Confirmation {
	return Confirmation{
		Reference:     reference,
		Amount:        amount,
		Currency:      money.NGN,
		UserID:        userID,
		Customer:      Customer{ID: "4471", Email: "payer@example.com"},
		Source:        sourceWebhook,
		Authenticated: true,
	}
}

func TestConfirmDepositDeliveredTwice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.NewString()
	_, err := h.wallets.Create(ctx, userID, money.NGN)
	require.NoError(t, err)

	first, err := h.svc.ConfirmDeposit(ctx, webhookConfirmation(userID, "PSK_REF_123456", 5000))
	require.NoError(t, err)
	assert.Equal(t, StatusCredited, first.Status)

	second, err := h.svc.ConfirmDeposit(ctx, webhookConfirmation(userID, "PSK_REF_123456", 5000))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, second.Status)

	assert.Equal(t, money.Amount(5000), h.balance(t, userID))
	assert.Equal(t, 1, h.rowsFor(t, userID, "PSK_REF_123456"))
	assert.Equal(t, 1, h.notifier.count())

	stored, err := h.svc.DepositStatus(ctx, "PSK_REF_123456")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, stored.Status)
	assert.Equal(t, "payer@example.com", stored.Metadata["customer_email"])
}

func TestConfirmDepositConcurrentDeliveries(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.NewString()
	_, err := h.wallets.Create(ctx, userID, money.NGN)
	require.NoError(t, err)

	const deliveries = 20
	statuses := make(chan string, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.ConfirmDeposit(ctx, webhookConfirmation(userID, "PSK_REF_CONCURRENT", 5000))
			assert.NoError(t, err)
			statuses <- res.Status
		}()
	}
	wg.Wait()
	close(statuses)

	credited := 0
	for s := range statuses {
		if s == StatusCredited {
			credited++
		} else {
			assert.Equal(t, StatusAlreadyProcessed, s)
		}
	}
	assert.Equal(t, 1, credited)
	assert.Equal(t, money.Amount(5000), h.balance(t, userID))
	assert.Equal(t, 1, h.rowsFor(t, userID, "PSK_REF_CONCURRENT"))
}

func TestInitiateThenConfirmSettlesPending(t *testing.T) {
	gw := &StaticGateway{CheckoutURL: "https://checkout.test"}
	h := newHarness(t, gw)
	ctx := context.Background()
	userID := uuid.NewString()

	res, err := h.svc.InitiateDeposit(ctx, DepositInput{UserID: userID, Amount: 7500})
	require.NoError(t, err)
	assert.Regexp(t, `^dep_`, res.Reference)
	assert.Equal(t, "https://checkout.test/"+res.Reference, res.AuthorizationURL)
	assert.Equal(t, ledger.StatusPending, res.Status)
	assert.Equal(t, "deposits@example.com", gw.payments[res.Reference].Email)

	// wallet was created on first deposit attempt, balance untouched
	assert.Equal(t, money.Amount(0), h.balance(t, userID))

	c := webhookConfirmation("", res.Reference, 7000)
	out, err := h.svc.ConfirmDeposit(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, StatusCredited, out.Status)

	assert.Equal(t, money.Amount(7000), h.balance(t, userID))
	assert.Equal(t, 1, h.rowsFor(t, userID, res.Reference))

	stored, err := h.svc.DepositStatus(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, stored.Status)
	assert.Equal(t, money.Amount(7000), stored.Amount)
	assert.EqualValues(t, 7500, stored.Metadata["requested_amount"])
}

func TestConfirmDepositRejections(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.NewString()
	w, err := h.wallets.Create(ctx, userID, money.NGN)
	require.NoError(t, err)

	c := webhookConfirmation(userID, "PSK_UNSIGNED", 100)
	c.Authenticated = false
	_, err = h.svc.ConfirmDeposit(ctx, c)
	assert.ErrorIs(t, err, ledger.ErrInvalidSignature)

	_, err = h.svc.ConfirmDeposit(ctx, webhookConfirmation(uuid.NewString(), "PSK_NO_WALLET", 100))
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	_, err = h.svc.ConfirmDeposit(ctx, webhookConfirmation("", "PSK_NO_HINT", 100))
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	_, err = h.svc.ConfirmDeposit(ctx, webhookConfirmation(userID, "PSK_ZERO", 0))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	other, err := h.wallets.Create(ctx, uuid.NewString(), money.NGN)
	require.NoError(t, err)
	_, err = ledger.SeedDeposit(ctx, h.store, w.ID, 1000)
	require.NoError(t, err)
	err = h.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.InsertTransaction(ctx, ledger.Transaction{
			Reference: "tx_shared", Kind: ledger.KindTransfer, Status: ledger.StatusSuccess,
			Amount: 1, Currency: money.NGN, FromWalletID: w.ID, ToWalletID: other.ID,
		})
		return err
	})
	require.NoError(t, err)

	_, err = h.svc.ConfirmDeposit(ctx, webhookConfirmation(userID, "tx_shared", 100))
	assert.ErrorIs(t, err, ledger.ErrDuplicateReference)

	_, err = h.svc.DepositStatus(ctx, "tx_shared")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	assert.Equal(t, money.Amount(1000), h.balance(t, userID))
	assert.Zero(t, h.notifier.count())
}

type staticResolver map[string]string

func (r staticResolver) ResolveCustomer(_ context.Context, c Customer) (string, error) {
	return r[c.Email], nil
}

func TestConfirmDepositUsesCustomerResolver(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.NewString()
	_, err := h.wallets.Create(ctx, userID, money.NGN)
	require.NoError(t, err)
	h.svc.opts.Resolver = staticResolver{"payer@example.com": userID}

	res, err := h.svc.ConfirmDeposit(ctx, webhookConfirmation("", "PSK_RESOLVED", 250))
	require.NoError(t, err)
	assert.Equal(t, StatusCredited, res.Status)
	assert.Equal(t, money.Amount(250), h.balance(t, userID))
}

func TestInitiateDepositGatewayFailureKeepsPending(t *testing.T) {
	h := newHarness(t, failingGateway{})
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := h.svc.InitiateDeposit(ctx, DepositInput{UserID: userID, Amount: 100})
	require.ErrorIs(t, err, ErrGateway)

	entries, err := h.wallets.Transactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.StatusPending, entries[0].Status)
	assert.Equal(t, money.Amount(0), h.balance(t, userID))

	_, err = h.svc.InitiateDeposit(ctx, DepositInput{UserID: userID, Amount: -1})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestVerifyDeposit(t *testing.T) {
	h := newHarness(t, &StaticGateway{})
	ctx := context.Background()
	userID := uuid.NewString()

	res, err := h.svc.InitiateDeposit(ctx, DepositInput{UserID: userID, Email: "me@example.com", Amount: 900})
	require.NoError(t, err)

	_, err = h.svc.VerifyDeposit(ctx, uuid.NewString(), res.Reference)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	for i := 0; i < 2; i++ {
		got, err := h.svc.VerifyDeposit(ctx, userID, res.Reference)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSuccess, got.Status)
	}
	assert.Equal(t, money.Amount(900), h.balance(t, userID))
	assert.Equal(t, 1, h.notifier.count())

	_, err = h.svc.VerifyDeposit(ctx, userID, "dep_unknown")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}
