package storage

import (
	"context"

	"github.com/iudanet/supwarden/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns *DuplicateError if pseudo, email or google id is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByPseudo retrieves user by pseudo
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByPseudo(ctx context.Context, pseudo string) (*models.User, error)

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByGoogleID retrieves user by linked Google subject
	// Returns ErrUserNotFound if no user is linked
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// UpdateUser updates every mutable user field
	// Returns ErrUserNotFound if user doesn't exist, *DuplicateError on collisions
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes user by ID together with owned vaults and memberships
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error
}
