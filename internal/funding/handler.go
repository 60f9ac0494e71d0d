package funding

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/httperr"
	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/money"
)

const eventChargeSuccess = "charge.success"

// Handler exposes deposit and gateway webhook endpoints.
type Handler struct {
	service *Service
	secret  string
	logger  *slog.Logger
}

// NewHandler constructs a funding handler. secret verifies webhook signatures.
func NewHandler(service *Service, secret string, logger *slog.Logger) *Handler {
	return &Handler{service: service, secret: secret, logger: logger}
}

// Deposit starts a gateway deposit for the caller.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	currency, err := h.service.wallets.Currency(req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("email").(string)

	res, err := h.service.InitiateDeposit(c.UserContext(), DepositInput{
		UserID:   uid,
		Email:    email,
		Amount:   money.Amount(req.Amount),
		Currency: currency,
	})
	if err != nil {
		return gatewayError(err)
	}
	return c.Status(http.StatusCreated).JSON(DepositResponse{
		Reference:        res.Reference,
		AuthorizationURL: res.AuthorizationURL,
		Status:           string(res.Status),
	})
}

// Webhook authenticates a gateway notification and reconciles successful
// charges. Other events are acknowledged and dropped.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	raw := c.Body()
	if err := VerifySignature(h.secret, raw, c.Get(SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", slog.String("ip", c.IP()))
		return httperr.From(err)
	}

	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed webhook payload")
	}
	if event.Event != eventChargeSuccess {
		h.logger.Info("webhook event ignored", slog.String("event", event.Event))
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ignored"})
	}

	v := event.Data.verification()
	res, err := h.service.ConfirmDeposit(c.UserContext(), Confirmation{
		Reference:     v.Reference,
		Amount:        v.Amount,
		Currency:      v.Currency,
		Customer:      v.Customer,
		UserID:        v.UserID,
		Channel:       v.Channel,
		PaidAt:        v.PaidAt,
		Source:        sourceWebhook,
		Authenticated: true,
	})
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": res.Status, "reference": res.Reference})
}

// WebhookLiveness lets the gateway dashboard probe the endpoint.
func (h *Handler) WebhookLiveness(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).SendString("paystack webhook endpoint is live")
}

// Status returns a stored deposit by reference.
func (h *Handler) Status(c *fiber.Ctx) error {
	t, err := h.service.DepositStatus(c.UserContext(), c.Params("reference"))
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toStatusResponse(t))
}

// ManualVerify re-checks a deposit with the gateway.
func (h *Handler) ManualVerify(c *fiber.Ctx) error {
	reference := c.Query("reference")
	if reference == "" {
		return fiber.NewError(http.StatusBadRequest, "reference is required")
	}
	uid, _ := c.Locals("user_id").(string)
	t, err := h.service.VerifyDeposit(c.UserContext(), uid, reference)
	if err != nil {
		return gatewayError(err)
	}
	return c.Status(http.StatusOK).JSON(toStatusResponse(t))
}

func toStatusResponse(t ledger.Transaction) DepositStatusResponse {
	return DepositStatusResponse{
		Reference: t.Reference,
		Status:    string(t.Status),
		Amount:    int64(t.Amount),
		Currency:  t.Currency.String(),
	}
}

func gatewayError(err error) error {
	if errors.Is(err, ErrGateway) {
		return fiber.NewError(http.StatusBadGateway, "payment gateway unavailable")
	}
	return httperr.From(err)
}
