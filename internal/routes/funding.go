package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/apikey"
	"github.com/walletd/walletd/internal/funding"
)

// RegisterFundingRoutes wires deposit initiation, gateway webhook and deposit status endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, g Guard) {
	// The webhook authenticates by signature, not by caller credentials.
	r.Post("/wallet/paystack/webhook", h.Webhook)
	r.Get("/wallet/paystack/webhook", h.WebhookLiveness)

	r.Post("/wallet/deposit", append(g.Allow(apikey.PermissionDeposit), g.Idempotency, h.Deposit)...)
	r.Get("/wallet/deposit/:reference/status", append(g.Allow(apikey.PermissionRead), h.Status)...)
	r.Get("/wallet/manual-verify", append(g.Allow(apikey.PermissionRead), h.ManualVerify)...)
}
