package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/apikey"
	"github.com/walletd/walletd/internal/payments"
)

// RegisterPaymentRoutes wires the wallet-to-wallet transfer endpoint.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, g Guard, limiter fiber.Handler) {
	r.Post("/wallet/transfer", append(g.Allow(apikey.PermissionTransfer), limiter, g.Idempotency, h.Transfer)...)
}
