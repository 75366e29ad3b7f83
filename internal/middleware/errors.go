package middleware

import (
	"errors"
	"log"

	"raidentrack/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Error codes sent in the "error" field of failure responses.
const (
	CodeValidation      = "validation_error"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeInternal        = "internal_error"
)

// Status maps a service error to its HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, CodeValidation
	case errors.Is(err, services.ErrUnauthenticated):
		return fiber.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, CodeForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusBadRequest, CodeConflict
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}

// WriteError renders err as {"message": reason, "error": code}. Causes of
// internal errors are logged and never sent to the client.
func WriteError(c *fiber.Ctx, err error) error {
	status, code := Status(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}
	return c.Status(status).JSON(fiber.Map{
		"message": services.Reason(err),
		"error":   code,
	})
}
