package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raidentrack/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
// The *gorm.DB must be opened with TranslateError so that unique violations
// come back as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.AvatarURL == "" {
		user.AvatarURL = models.DefaultAvatarURL
	}
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create user %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username", username)
}

// FindByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email", email)
}

// FindByPublicID retrieves a user by the externally visible identifier.
func (r *GORMUserRepository) FindByPublicID(ctx context.Context, publicID int64) (*models.User, error) {
	return r.first(ctx, "public_id", publicID)
}

// first looks a user up by one of the indexed columns.
func (r *GORMUserRepository) first(ctx context.Context, column string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, column+" = ?", arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with %s %v: %w", column, arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by %s %v: %w", column, arg, err)
	}
	return &user, nil
}

// Rename changes the username. The unique index decides races between
// concurrent renames; the loser gets ErrDuplicate and nothing is written.
func (r *GORMUserRepository) Rename(ctx context.Context, user *models.User, newUsername string) error {
	if err := r.update(ctx, user, "username", newUsername); err != nil {
		return err
	}
	user.Username = newUsername
	return nil
}

// SetPassword replaces the stored password hash.
func (r *GORMUserRepository) SetPassword(ctx context.Context, user *models.User, passwordHash string) error {
	if err := r.update(ctx, user, "password_hash", passwordHash); err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	return nil
}

// SetRole sets the admin flag.
func (r *GORMUserRepository) SetRole(ctx context.Context, user *models.User, isAdmin bool) error {
	if err := r.update(ctx, user, "is_admin", isAdmin); err != nil {
		return err
	}
	user.IsAdmin = isAdmin
	return nil
}

// SetAvatar stores the profile picture location.
func (r *GORMUserRepository) SetAvatar(ctx context.Context, user *models.User, avatarURL string) error {
	if err := r.update(ctx, user, "avatar_url", avatarURL); err != nil {
		return err
	}
	user.AvatarURL = avatarURL
	return nil
}

func (r *GORMUserRepository) update(ctx context.Context, user *models.User, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("update %s of user %d: %w", column, user.PublicID, ErrDuplicate)
		}
		return fmt.Errorf("failed to update %s of user %d: %w", column, user.PublicID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found for update: %w", user.PublicID, ErrNotFound)
	}
	return nil
}

// Delete removes the user and its import records in one transaction.
func (r *GORMUserRepository) Delete(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_public_id = ?", user.PublicID).Delete(&models.ImportRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete imports of user %d: %w", user.PublicID, err)
		}
		res := tx.Delete(&models.User{}, "id = ?", user.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete user %d: %w", user.PublicID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d not found for deletion: %w", user.PublicID, ErrNotFound)
		}
		return nil
	})
}

// List returns every user ordered by join date.
func (r *GORMUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("joined_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
