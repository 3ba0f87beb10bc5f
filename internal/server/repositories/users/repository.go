// Package users declares the user-directory repository contract.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations for resolving and maintaining user accounts.
// Lookups return common.ErrorNotFound when no matching account exists.
type Repository interface {
	// Create persists a new account and returns it with the generated ID.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID resolves an account by its opaque identifier.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByEmail resolves an account by its normalized email address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByUsername resolves an account by its normalized username.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// UpdatePassword replaces the stored password hash for the account.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
