package middleware

import (
	"log"
	"strings"

	"raidentrack/internal/models"
	"raidentrack/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	localUser   = "user"
	localClaims = "claims"
)

// AuthRequired is a Fiber middleware that resolves the bearer token to a user.
func AuthRequired(guard *services.Guard) fiber.Handler {
	return authenticate(guard, false)
}

// AdminRequired is like AuthRequired but also requires the admin role.
func AdminRequired(guard *services.Guard) fiber.Handler {
	return authenticate(guard, true)
}

func authenticate(guard *services.Guard, requireAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return WriteError(c, &services.Error{
				Kind:   services.ErrUnauthenticated,
				Reason: "Authorization header format must be 'Bearer <token>'",
			})
		}

		user, claims, err := guard.Resolve(c.UserContext(), token, requireAdmin)
		if err != nil {
			log.Printf("Access to %s denied: %v", c.Path(), err)
			return WriteError(c, err)
		}

		// Store the resolved identity for subsequent handlers
		c.Locals(localUser, user)
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// A missing header yields an empty token so the guard reports it.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// CurrentUser returns the user stored by AuthRequired or AdminRequired.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

// CurrentClaims returns the token claims stored by AuthRequired or AdminRequired.
func CurrentClaims(c *fiber.Ctx) *services.SessionClaims {
	claims, _ := c.Locals(localClaims).(*services.SessionClaims)
	return claims
}
