package repositories

import (
	"context"
	"errors"

	"raidentrack/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would violate a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPublicID(ctx context.Context, publicID int64) (*models.User, error)
	Rename(ctx context.Context, user *models.User, newUsername string) error
	SetPassword(ctx context.Context, user *models.User, passwordHash string) error
	SetRole(ctx context.Context, user *models.User, isAdmin bool) error
	SetAvatar(ctx context.Context, user *models.User, avatarURL string) error
	// Delete removes the user together with its import records.
	Delete(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
}
