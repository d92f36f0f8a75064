// users.go implements the user service: registration, credential
// verification, and the admin user-management surface.
package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samsonhsy/dot-backend/internal/auth"
	"github.com/samsonhsy/dot-backend/internal/db/models"
	"github.com/samsonhsy/dot-backend/internal/db/repositories"
)

// UserStore is the slice of UserRepository the user service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, userID string) error
	UpdateTier(ctx context.Context, userID, tier string) error
}

// UserService manages accounts
type UserService struct {
	store  UserStore
	logger *slog.Logger
}

// NewUserService creates a user service
func NewUserService(store UserStore, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// Register creates a new free-tier account. Username and email collisions
// surface as Conflict.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrValidation("username, email, and password are required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, ErrPersistence(err, "failed to hash password")
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, ErrConflict("username or email is already taken")
		}
		return nil, ErrPersistence(err, "failed to create user")
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies credentials and returns the account. Unknown
// usernames and wrong passwords produce the same error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrPersistence(err, "failed to load user")
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthenticated("invalid username or password")
	}

	return user, nil
}

// Get loads one account by id
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to load user")
	}
	if user == nil {
		return nil, ErrNotFound("user not found")
	}
	return user, nil
}

// List returns all accounts
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list users")
	}
	return users, nil
}

// Delete removes an account. The caller's collections are not cascaded;
// cleaning them up beforehand is the admin's responsibility.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return ErrPersistence(err, "failed to load user")
	}
	if user == nil {
		return ErrNotFound("user not found")
	}

	if err := s.store.Delete(ctx, userID); err != nil {
		if repositories.IsForeignKeyViolation(err) {
			return ErrConflict("user still owns collections or redeemed license keys; remove those first")
		}
		return ErrPersistence(err, "failed to delete user")
	}

	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

// Promote changes the target user's tier. Promoting to the tier the user
// already holds is a validation error.
func (s *UserService) Promote(ctx context.Context, targetUserID, tier string) (*models.User, error) {
	if !models.ValidTier(tier) {
		return nil, ErrValidation("invalid tier %q", tier)
	}

	user, err := s.store.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to load user")
	}
	if user == nil {
		return nil, ErrNotFound("user not found")
	}
	if user.AccountTier == tier {
		return nil, ErrValidation("user already has tier %q", tier)
	}

	if err := s.store.UpdateTier(ctx, targetUserID, tier); err != nil {
		return nil, ErrPersistence(err, "failed to update tier")
	}

	s.logger.Info("user tier changed", "user_id", targetUserID, "tier", tier)
	user.AccountTier = tier
	return user, nil
}
