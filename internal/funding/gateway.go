package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/walletd/walletd/internal/money"
)

// ErrGateway wraps failures talking to the payment gateway.
var ErrGateway = errors.New("payment gateway error")

// Gateway is the payment-gateway collaborator. Calls are never made inside
// a ledger unit of work.
type Gateway interface {
	InitializePayment(ctx context.Context, req PaymentRequest) (Authorization, error)
	VerifyPayment(ctx context.Context, reference string) (Verification, error)
}

// PaymentRequest asks the gateway to start a checkout for a deposit.
type PaymentRequest struct {
	Amount    money.Amount
	Currency  money.Currency
	Email     string
	Reference string
	UserID    string
}

// Authorization is where the payer completes the checkout.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the gateway's view of a charge.
type Verification struct {
	Reference string
	Status    string
	Amount    money.Amount
	Currency  money.Currency
	Channel   string
	PaidAt    string
	Customer  Customer
	UserID    string
}

// Paid reports whether the gateway settled the charge.
func (v Verification) Paid() bool { return v.Status == chargeSuccess }

// Customer identifies the payer on the gateway side.
type Customer struct {
	ID    string
	Email string
	Code  string
}

const chargeSuccess = "success"

// StaticGateway simulates a gateway for local development: every initialized
// payment is reported as paid in full.
type StaticGateway struct {
	CheckoutURL string

	mu       sync.Mutex
	payments map[string]PaymentRequest
}

// InitializePayment records the request and returns a synthetic checkout URL.
func (g *StaticGateway) InitializePayment(_ context.Context, req PaymentRequest) (Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payments == nil {
		g.payments = make(map[string]PaymentRequest)
	}
	g.payments[req.Reference] = req
	base := g.CheckoutURL
	if base == "" {
		base = "https://checkout.example.test"
	}
	return Authorization{
		AuthorizationURL: fmt.Sprintf("%s/%s", base, req.Reference),
		AccessCode:       req.Reference,
		Reference:        req.Reference,
	}, nil
}

// VerifyPayment reports initialized payments as successful.
func (g *StaticGateway) VerifyPayment(_ context.Context, reference string) (Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.payments[reference]
	if !ok {
		return Verification{Reference: reference, Status: "abandoned"}, nil
	}
	return Verification{
		Reference: reference,
		Status:    chargeSuccess,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Channel:   "static",
		PaidAt:    time.Now().UTC().Format(time.RFC3339),
		Customer:  Customer{Email: req.Email},
		UserID:    req.UserID,
	}, nil
}
