package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/apikey"
)

// RegisterKeyRoutes wires the API key lifecycle. Only access tokens may
// manage keys.
func RegisterKeyRoutes(r fiber.Router, h *apikey.Handler, tokenOnly fiber.Handler) {
	keys := r.Group("/keys", tokenOnly)
	keys.Post("/create", h.Create)
	keys.Post("/rollover", h.Rollover)
	keys.Post("/:id/revoke", h.Revoke)
}
