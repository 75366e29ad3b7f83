package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"raidentrack/internal/models"
	"raidentrack/internal/repositories"
)

// UserUpdate carries the optional changes an admin can make to an account.
// An empty NewPassword leaves the password alone.
type UserUpdate struct {
	NewPassword *string
	IsAdmin     *bool
}

// AdminService manages other users' accounts.
type AdminService struct {
	users  repositories.UserRepository
	hasher PasswordHasher
	events EventPublisher
}

// NewAdminService creates a new AdminService. events may be nil.
func NewAdminService(users repositories.UserRepository, hasher PasswordHasher, events EventPublisher) *AdminService {
	return &AdminService{users: users, hasher: hasher, events: events}
}

// ListUsers returns every user ordered by join date.
func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, internal("Could not list users", err)
	}
	return users, nil
}

func (s *AdminService) find(ctx context.Context, publicID int64) (*models.User, error) {
	user, err := s.users.FindByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found")
		}
		return nil, internal("Could not load user", err)
	}
	return user, nil
}

// UpdateUser applies upd to the user with publicID. Tokens the user already
// holds keep their old role until they log in again.
func (s *AdminService) UpdateUser(ctx context.Context, publicID int64, upd UserUpdate) (*models.User, error) {
	user, err := s.find(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if upd.NewPassword != nil && *upd.NewPassword != "" {
		if err := checkPassword(*upd.NewPassword); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*upd.NewPassword)
		if err != nil {
			return nil, internal("Could not update user", err)
		}
		if err := s.users.SetPassword(ctx, user, hash); err != nil {
			return nil, internal("Could not update user", err)
		}
	}

	if upd.IsAdmin != nil && *upd.IsAdmin != user.IsAdmin {
		if err := s.users.SetRole(ctx, user, *upd.IsAdmin); err != nil {
			return nil, internal("Could not update user", err)
		}
		log.Printf("User %d admin flag set to %t", user.PublicID, user.IsAdmin)
	}
	return user, nil
}

// DeleteUser removes the user and their import history.
func (s *AdminService) DeleteUser(ctx context.Context, publicID int64) (*models.User, error) {
	user, err := s.find(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "User not found")
		}
		return nil, internal("Could not delete user", err)
	}

	log.Printf("Deleted user %s (%d)", user.Username, user.PublicID)
	publish(s.events, EventUserDeleted, map[string]any{
		"userid":   user.PublicID,
		"username": user.Username,
	})
	return user, nil
}

// publish sends an event when a publisher is configured and only logs failures.
func publish(events EventPublisher, routingKey string, payload any) {
	if events == nil {
		return
	}
	if err := events.Publish(routingKey, payload); err != nil {
		log.Printf("Failed to publish %s event: %v", routingKey, err)
	}
}

// Columns an import file must carry.
var importColumns = []string{"project_id", "progress_percent", "materials_used", "workforce", "days_elapsed", "days_remaining"}

// ImportPreview summarises an uploaded progress file.
type ImportPreview struct {
	Message string           `json:"message"`
	Rows    int              `json:"rows"`
	Columns []string         `json:"columns"`
	Preview []map[string]any `json:"preview"`
}

// PreviewImport checks an import file for the expected columns and returns its
// first five rows.
func (s *AdminService) PreviewImport(r io.Reader) (*ImportPreview, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if missing := table.Missing(importColumns...); len(missing) > 0 {
		return nil, newError(ErrValidation, "CSV format is invalid. Expected columns: "+strings.Join(importColumns, ", "))
	}
	return &ImportPreview{
		Message: "CSV imported successfully",
		Rows:    len(table.Rows),
		Columns: table.Columns,
		Preview: table.Records(5),
	}, nil
}
