package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultPaystackBaseURL is the production API root.
	DefaultPaystackBaseURL = "https://api.paystack.co"
	defaultGatewayTimeout  = 15 * time.Second
)

// PaystackGateway talks to the Paystack transaction API.
type PaystackGateway struct {
	baseURL string
	secret  string
	timeout time.Duration
}

// NewPaystackGateway builds a client authenticated with the secret key.
func NewPaystackGateway(baseURL, secret string, timeout time.Duration) *PaystackGateway {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &PaystackGateway{baseURL: strings.TrimRight(baseURL, "/"), secret: secret, timeout: timeout}
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeRequest struct {
	Amount    int64             `json:"amount"`
	Email     string            `json:"email"`
	Reference string            `json:"reference"`
	Currency  string            `json:"currency,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializePayment starts a checkout. Amounts are already in the smallest
// currency unit, which is what Paystack expects.
func (g *PaystackGateway) InitializePayment(ctx context.Context, req PaymentRequest) (Authorization, error) {
	body := initializeRequest{
		Amount:    int64(req.Amount),
		Email:     req.Email,
		Reference: req.Reference,
		Currency:  req.Currency.String(),
	}
	if req.UserID != "" {
		body.Metadata = map[string]string{"user_id": req.UserID}
	}

	agent := fiber.Post(g.baseURL + "/transaction/initialize").JSON(body)
	var out envelope[initializeData]
	if err := g.send(ctx, agent, &out); err != nil {
		return Authorization{}, err
	}
	return Authorization{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

// VerifyPayment fetches the current state of a charge.
func (g *PaystackGateway) VerifyPayment(ctx context.Context, reference string) (Verification, error) {
	agent := fiber.Get(g.baseURL + "/transaction/verify/" + url.PathEscape(reference))
	var out envelope[chargeData]
	if err := g.send(ctx, agent, &out); err != nil {
		return Verification{}, err
	}
	return out.Data.verification(), nil
}

func (g *PaystackGateway) send(ctx context.Context, agent *fiber.Agent, out any) error {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %w", ErrGateway, context.DeadlineExceeded)
	}

	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.secret).Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrGateway, errors.Join(errs...))
	}

	var status struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &status)
	if code >= fiber.StatusMultipleChoices || !status.Status {
		msg := status.Message
		if msg == "" {
			msg = string(body)
		}
		return fmt.Errorf("%w: status %d: %s", ErrGateway, code, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrGateway, err)
	}
	return nil
}
