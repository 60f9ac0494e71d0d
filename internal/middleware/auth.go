package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/apikey"
	"github.com/walletd/walletd/internal/auth"
)

const apiKeyHeader = "x-api-key"

// Authenticate resolves the caller from a bearer access token or, when keys is
// non-nil, an x-api-key header. Token callers carry every permission; key
// callers carry the key's permissions.
func Authenticate(tokens *auth.Service, keys *apikey.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			id, err := tokens.Verify(strings.TrimSpace(authz[len("Bearer "):]))
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			c.Locals("user_id", id.UserID)
			c.Locals("email", id.Email)
			c.Locals("permissions", apikey.AllPermissions)
			return c.Next()
		}

		raw := c.Get(apiKeyHeader)
		if raw == "" || keys == nil {
			return fiber.NewError(http.StatusUnauthorized, "missing credentials")
		}
		key, err := keys.Authenticate(c.UserContext(), raw)
		switch {
		case errors.Is(err, apikey.ErrKeyExpired):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, apikey.ErrInvalidKey):
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		case err != nil:
			return err
		}
		c.Locals("user_id", key.UserID)
		c.Locals("api_key_id", key.ID)
		c.Locals("permissions", key.Permissions)
		return c.Next()
	}
}

// Require rejects callers that lack perm.
func Require(perm apikey.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		perms, _ := c.Locals("permissions").([]apikey.Permission)
		if !slices.Contains(perms, perm) {
			return fiber.NewError(http.StatusForbidden, "missing "+string(perm)+" permission")
		}
		return c.Next()
	}
}
