package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/apikey"
	"github.com/walletd/walletd/internal/wallet"
)

// RegisterWalletRoutes wires wallet provisioning, balance and history endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, g Guard) {
	r.Post("/wallet", g.Authenticate, h.Create)
	r.Get("/wallet/balance", append(g.Allow(apikey.PermissionRead), h.Balance)...)
	r.Get("/wallet/transactions", append(g.Allow(apikey.PermissionRead), h.Transactions)...)
}
