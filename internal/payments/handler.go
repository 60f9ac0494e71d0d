package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/httperr"
	"github.com/walletd/walletd/internal/money"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToUserID string `json:"to_user_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Transfer moves funds from the caller to another user.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	if req.ToUserID == "" {
		return fiber.NewError(http.StatusBadRequest, "to_user_id is required")
	}
	currency, err := money.ParseCurrency(req.Currency, h.service.defaultCurrency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromUserID: uid,
		ToUserID:   req.ToUserID,
		Amount:     money.Amount(req.Amount),
		Currency:   currency,
	})
	if err != nil {
		return httperr.From(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status":       string(res.Status),
		"reference":    res.Reference,
		"amount":       int64(res.Amount),
		"currency":     res.Currency.String(),
		"from_user_id": res.FromUserID,
		"to_user_id":   res.ToUserID,
		"completed_at": res.CompletedAt,
	})
}
