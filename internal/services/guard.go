package services

import (
	"context"
	"errors"

	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
)

// Guard resolves a bearer token to a user record. It keeps no state between
// calls: every request decodes the token and looks the user up again.
type Guard struct {
	tokens *TokenService
	users  repositories.UserRepository
}

// NewGuard creates a Guard.
func NewGuard(tokens *TokenService, users repositories.UserRepository) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Resolve returns the user behind token. The admin requirement is checked
// against the role stamped into the token, not the current record.
func (g *Guard) Resolve(ctx context.Context, token string, requireAdmin bool) (*models.User, *SessionClaims, error) {
	if token == "" {
		return nil, nil, newError(ErrUnauthenticated, "Authorization token is required")
	}

	claims, err := g.tokens.Decode(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, nil, &Error{Kind: ErrUnauthenticated, Reason: "Token has expired", cause: err}
		}
		return nil, nil, &Error{Kind: ErrUnauthenticated, Reason: "Invalid token", cause: err}
	}

	user, err := g.users.FindByPublicID(ctx, claims.PublicID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, &Error{Kind: ErrUnauthenticated, Reason: "User not found", cause: err}
		}
		return nil, nil, internal("Could not resolve user", err)
	}

	if requireAdmin && !claims.IsAdmin {
		return nil, nil, newError(ErrForbidden, "Access denied: Admins only")
	}
	return user, claims, nil
}
