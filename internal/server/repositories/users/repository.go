// Package users declares the repository contract for credential records.
package users

import (
	"context"

	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

// Repository defines persistence operations for credential records.
// Lookups return common.ErrNotFound when no row matches; Create returns
// common.ErrConflict on a duplicate email or provider identity.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// LinkProvider attaches a federated identity to an existing record,
	// leaving any password hash untouched.
	LinkProvider(ctx context.Context, id, provider, providerID, avatarURL string) error
}
