package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
	"raidentrack/pkg/storage"
)

// Profile is the view of the caller's own account.
type Profile struct {
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	JoinedDate time.Time `json:"joined_date"`
	PublicID   int64     `json:"userid"`
	ProfilePic string    `json:"profile_pic"`
	IsAdmin    bool      `json:"is_sudo"`
	Role       string    `json:"role"`
}

// NewProfile builds the profile view of user.
func NewProfile(user *models.User) Profile {
	return Profile{
		Username:   user.Username,
		Email:      user.Email,
		JoinedDate: user.JoinedAt,
		PublicID:   user.PublicID,
		ProfilePic: user.AvatarURL,
		IsAdmin:    user.IsAdmin,
		Role:       user.Role(),
	}
}

// ImportView is an import record with its chart data decoded.
type ImportView struct {
	ChartData  []models.ChartPoint `json:"chart_data"`
	Prediction string              `json:"prediction"`
	CreatedAt  time.Time           `json:"created_at"`
}

// AccountService handles changes a user makes to their own account.
type AccountService struct {
	users   repositories.UserRepository
	imports repositories.ImportRecordRepository
	hasher  PasswordHasher
	images  ImageStore
}

// NewAccountService creates a new AccountService.
func NewAccountService(users repositories.UserRepository, imports repositories.ImportRecordRepository, hasher PasswordHasher, images ImageStore) *AccountService {
	return &AccountService{users: users, imports: imports, hasher: hasher, images: images}
}

// ChangePassword replaces the password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return newError(ErrValidation, "Old password is incorrect.")
	}

	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal("Could not change password", err)
	}
	if err := s.users.SetPassword(ctx, user, hash); err != nil {
		return internal("Could not change password", err)
	}

	log.Printf("User %d changed their password", user.PublicID)
	return nil
}

// ChangeUsername renames user. Keeping the current name is a no-op.
func (s *AccountService) ChangeUsername(ctx context.Context, user *models.User, newUsername string) (*models.User, error) {
	if newUsername == user.Username {
		return user, nil
	}

	if err := s.users.Rename(ctx, user, newUsername); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, newError(ErrConflict, "Username unavailable")
		case errors.Is(err, repositories.ErrNotFound):
			return nil, newError(ErrNotFound, "User not found")
		default:
			return nil, internal("Could not change username", err)
		}
	}
	return user, nil
}

// AvatarKey is the object key of a user's profile picture.
func AvatarKey(publicID int64) string {
	return fmt.Sprintf("static/profile_pic_%d.jpg", publicID)
}

// UploadAvatar shrinks an uploaded image to a thumbnail, stores it and points
// the user's profile picture at it.
func (s *AccountService) UploadAvatar(ctx context.Context, user *models.User, contentType string, data []byte) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", newError(ErrValidation, "Invalid file type. Only image files are allowed.")
	}

	thumb, err := storage.Thumbnail(data)
	if err != nil {
		return "", &Error{Kind: ErrValidation, Reason: "Unable to open image.", cause: err}
	}

	url, err := s.images.Save(ctx, AvatarKey(user.PublicID), "image/jpeg", thumb)
	if err != nil {
		return "", internal("Could not upload profile picture", err)
	}
	if err := s.users.SetAvatar(ctx, user, url); err != nil {
		return "", internal("Could not update profile picture", err)
	}

	log.Printf("User %d uploaded a profile picture to %s", user.PublicID, url)
	return url, nil
}

// RecentImports returns the user's prediction history, newest first.
func (s *AccountService) RecentImports(ctx context.Context, user *models.User) ([]ImportView, error) {
	records, err := s.imports.ListByUser(ctx, user.PublicID)
	if err != nil {
		return nil, internal("Could not load recent imports", err)
	}

	views := make([]ImportView, 0, len(records))
	for _, r := range records {
		var points []models.ChartPoint
		if r.ChartData != "" {
			if err := json.Unmarshal([]byte(r.ChartData), &points); err != nil {
				log.Printf("Skipping chart data of import %s: %v", r.ID, err)
			}
		}
		if points == nil {
			points = []models.ChartPoint{}
		}
		views = append(views, ImportView{ChartData: points, Prediction: r.Prediction, CreatedAt: r.CreatedAt})
	}
	return views, nil
}
