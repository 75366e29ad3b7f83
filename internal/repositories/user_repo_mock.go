package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"raidentrack/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// It enforces the same uniqueness rules as the database schema.
type MockUserRepository struct {
	users   map[string]models.User
	imports *MockImportRecordRepository
	mu      sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository. When
// imports is non-nil, Delete cascades into it.
func NewMockUserRepository(imports *MockImportRecordRepository) *MockUserRepository {
	return &MockUserRepository{
		users:   make(map[string]models.User),
		imports: imports,
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email || u.PublicID == user.PublicID {
			return fmt.Errorf("create user %s: %w", user.Username, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.AvatarURL == "" {
		user.AvatarURL = models.DefaultAvatarURL
	}
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.JoinedAt
	r.users[user.ID] = *user
	return nil
}

// FindByUsername returns a user by username.
func (r *MockUserRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username }, "username", username)
}

// FindByEmail returns a user by email.
func (r *MockUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }, "email", email)
}

// FindByPublicID returns a user by public identifier.
func (r *MockUserRepository) FindByPublicID(_ context.Context, publicID int64) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.PublicID == publicID }, "public_id", publicID)
}

func (r *MockUserRepository) find(match func(models.User) bool, column string, arg any) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user with %s %v: %w", column, arg, ErrNotFound)
}

// Rename changes the username unless another user already holds it.
func (r *MockUserRepository) Rename(_ context.Context, user *models.User, newUsername string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.Username == newUsername && id != user.ID {
			return fmt.Errorf("rename user %d: %w", user.PublicID, ErrDuplicate)
		}
	}
	return r.mutate(user, func(u *models.User) { u.Username = newUsername })
}

// SetPassword replaces the stored hash.
func (r *MockUserRepository) SetPassword(_ context.Context, user *models.User, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(user, func(u *models.User) { u.PasswordHash = passwordHash })
}

// SetRole sets the admin flag.
func (r *MockUserRepository) SetRole(_ context.Context, user *models.User, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(user, func(u *models.User) { u.IsAdmin = isAdmin })
}

// SetAvatar stores the profile picture location.
func (r *MockUserRepository) SetAvatar(_ context.Context, user *models.User, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(user, func(u *models.User) { u.AvatarURL = avatarURL })
}

// mutate applies fn to both the stored copy and the caller's copy. r.mu must be held.
func (r *MockUserRepository) mutate(user *models.User, fn func(*models.User)) error {
	stored, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user %d not found for update: %w", user.PublicID, ErrNotFound)
	}
	fn(&stored)
	stored.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = stored
	fn(user)
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete removes a user and, when wired, its import records.
func (r *MockUserRepository) Delete(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %d not found for deletion: %w", user.PublicID, ErrNotFound)
	}
	delete(r.users, user.ID)
	if r.imports != nil {
		r.imports.deleteByUser(user.PublicID)
	}
	return nil
}

// List returns all users ordered by join date.
func (r *MockUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userList := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		userList = append(userList, u)
	}
	sort.Slice(userList, func(i, j int) bool { return userList[i].JoinedAt.Before(userList[j].JoinedAt) })
	return userList, nil
}
