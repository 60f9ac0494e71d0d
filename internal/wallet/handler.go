package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/httperr"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID           string    `json:"id"`
	WalletNumber string    `json:"wallet_number"`
	Currency     string    `json:"currency"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID        string         `json:"id"`
	Reference string         `json:"reference"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Direction string         `json:"direction"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Create provisions a wallet for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	var req createRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	currency, err := h.service.Currency(req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), uid, currency)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(walletResponse{
		ID:           w.ID,
		WalletNumber: w.Number,
		Currency:     w.Currency.String(),
		Balance:      int64(w.Balance),
		CreatedAt:    w.CreatedAt,
	})
}

// Balance returns the caller's balance in the requested currency.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	currency, err := h.service.Currency(c.Query("currency"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.Balance(c.UserContext(), uid, currency)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":       int64(bal.Amount),
		"currency":      bal.Currency.String(),
		"formatted":     bal.Formatted(),
		"wallet_number": bal.WalletNumber,
	})
}

// Transactions returns the caller's history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	entries, err := h.service.Transactions(c.UserContext(), uid)
	if err != nil {
		return httperr.From(err)
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transactionResponse{
			ID:        e.ID,
			Reference: e.Reference,
			Type:      string(e.Kind),
			Status:    string(e.Status),
			Direction: string(e.Direction),
			Amount:    int64(e.Amount),
			Currency:  e.Currency.String(),
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}
