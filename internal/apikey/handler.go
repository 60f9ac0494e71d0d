package apikey

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes API key endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an API key HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverRequest struct {
	ExpiredKeyID string `json:"expired_key_id"`
	Expiry       string `json:"expiry"`
}

type keyResponse struct {
	ID          string    `json:"id"`
	APIKey      string    `json:"api_key"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Create issues a key for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	issued, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:      uid,
		Name:        req.Name,
		Permissions: req.Permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(issued))
}

// Rollover replaces an expired key.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	issued, err := h.service.Rollover(c.UserContext(), uid, req.ExpiredKeyID, req.Expiry)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(issued))
}

// Revoke disables a key.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.Revoke(c.UserContext(), uid, c.Params("id")); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "revoked"})
}

func toResponse(issued Issued) keyResponse {
	return keyResponse{
		ID:          issued.ID,
		APIKey:      issued.Raw,
		Name:        issued.Name,
		Permissions: permissionStrings(issued.Permissions),
		ExpiresAt:   issued.ExpiresAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTooManyKeys):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidPermission), errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrKeyNotExpired), errors.Is(err, ErrKeyRevoked):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
