package services

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"

	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
)

// Public identifiers are drawn from this closed range.
const (
	publicIDMin = 100000
	publicIDMax = 999999

	maxPublicIDAttempts = 5
)

// AuthService handles registration, login and token refresh.
type AuthService struct {
	users  repositories.UserRepository
	tokens *TokenService
	hasher PasswordHasher
	randID func() int64
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repositories.UserRepository, tokens *TokenService, hasher PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		randID: func() int64 { return publicIDMin + rand.Int64N(publicIDMax-publicIDMin+1) },
	}
}

// LoginResult is returned on successful login.
type LoginResult struct {
	TokenPair
	PublicID int64
}

// Register creates a regular (non-admin) user.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, username, email, password, false)
}

// EnsureAdmin makes sure an admin account named username exists. An existing
// account with that name is promoted; its password is left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	existing, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin {
			if err := s.users.SetRole(ctx, existing, true); err != nil {
				return nil, internal("Could not promote admin", err)
			}
		}
		return existing, nil
	case errors.Is(err, repositories.ErrNotFound):
		return s.createUser(ctx, username, email, password, true)
	default:
		return nil, internal("Could not look up admin", err)
	}
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error) {
	if err := s.ensureFree(ctx, username, email); err != nil {
		return nil, err
	}

	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal("Could not register user", err)
	}

	publicID, err := s.allocatePublicID(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		PublicID:     publicID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, newError(ErrConflict, "Username or email unavailable")
		}
		return nil, internal("Could not register user", err)
	}

	log.Printf("Registered user %s with id %d (admin=%t)", user.Username, user.PublicID, user.IsAdmin)
	return user, nil
}

// ensureFree reports a Conflict when username or email is already taken.
func (s *AuthService) ensureFree(ctx context.Context, username, email string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return newError(ErrConflict, "Username unavailable")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return internal("Could not register user", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return newError(ErrConflict, "Email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return internal("Could not register user", err)
	}
	return nil
}

// allocatePublicID draws random identifiers until one is unused. The unique
// index still guards the window between this check and the insert.
func (s *AuthService) allocatePublicID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < maxPublicIDAttempts; attempt++ {
		id := s.randID()
		_, err := s.users.FindByPublicID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return 0, internal("Could not register user", err)
		}
	}
	return 0, newError(ErrConflict, "Could not allocate a user id, please retry")
}

// Login checks the credentials and issues an access and a refresh token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Same answer as a wrong password.
			return nil, newError(ErrUnauthenticated, "Invalid credentials")
		}
		return nil, internal("Could not log in", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, newError(ErrUnauthenticated, "Invalid credentials")
	}

	pair, err := s.tokens.IssuePair(Identity{Username: user.Username, PublicID: user.PublicID, IsAdmin: user.IsAdmin})
	if err != nil {
		return nil, internal("Could not issue tokens", err)
	}
	return &LoginResult{TokenPair: *pair, PublicID: user.PublicID}, nil
}

// Refresh mints a new access token from a refresh token.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", newError(ErrValidation, "Refresh token is required")
	}
	access, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return "", &Error{Kind: ErrUnauthenticated, Reason: "Invalid refresh token", cause: err}
		}
		return "", internal("Could not issue tokens", err)
	}
	return access, nil
}
