// Package httperr maps domain failures onto stable HTTP responses.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletd/walletd/internal/ledger"
)

const internalMessage = "internal server error"

// From converts err into a *fiber.Error. Ledger failures keep their message;
// anything unclassified becomes a generic 500 so storage details never leak.
func From(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	status := Status(ledger.KindOf(err))
	if status == http.StatusInternalServerError {
		return fiber.NewError(status, internalMessage)
	}
	return fiber.NewError(status, publicMessage(err))
}

// Status returns the response status for a ledger error kind.
func Status(kind ledger.ErrorKind) int {
	switch kind {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindInvalidInput:
		return http.StatusBadRequest
	case ledger.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ledger.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage strips wrapping context down to the sentinel the caller can act on.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		ledger.ErrWalletNotFound, ledger.ErrTransactionNotFound, ledger.ErrWalletExists,
		ledger.ErrDuplicateReference, ledger.ErrTransactionFinal, ledger.ErrInvalidAmount,
		ledger.ErrSelfTransfer, ledger.ErrCurrencyMismatch, ledger.ErrMissingReference,
		ledger.ErrMissingEndpoint, ledger.ErrInsufficientFunds, ledger.ErrInvalidSignature,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	var ce *ledger.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case ledger.ConstraintDuplicate:
			return "resource already exists"
		case ledger.ConstraintNotFound:
			return "referenced resource not found"
		}
		return "request violates a ledger constraint"
	}
	return err.Error()
}

// Handler is the application-wide fiber error handler. It renders every
// error as {"error": message} and logs server-side failures.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
			fe = From(err).(*fiber.Error)
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
}
