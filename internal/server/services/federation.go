package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/server/federation"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/repomanager"
)

// FederationBridge maps provider assertions to local credential records.
// It links by provider identity first, then by email, and creates a
// password-less record when neither matches.
type FederationBridge struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewFederationBridge constructs a FederationBridge over the given database.
func NewFederationBridge(db *sql.DB, m repomanager.RepositoryManager) *FederationBridge {
	return &FederationBridge{db: db, repomanager: m}
}

// Resolve returns the local user for the assertion, creating or linking
// one as needed. An assertion carrying neither a provider id nor an email
// cannot be anchored to anything and yields ErrIdentityIncomplete.
//
// Linking by email keeps the stored password hash, so local login keeps
// working after the merge.
func (b *FederationBridge) Resolve(ctx context.Context, assertion federation.Assertion) (*models.User, error) {
	if assertion.ProviderID == "" && assertion.Email == "" {
		return nil, common.ErrIdentityIncomplete
	}

	repo := b.repomanager.Users(b.db)
	email := normalizeEmail(assertion.Email)

	if assertion.ProviderID != "" {
		user, err := repo.GetByProvider(ctx, assertion.Provider, assertion.ProviderID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("error searching by provider: %w", err)
		}
	}

	if email != "" {
		user, err := repo.GetByEmail(ctx, email)
		if err == nil {
			if assertion.ProviderID != "" {
				if err := repo.LinkProvider(ctx, user.ID, assertion.Provider, assertion.ProviderID, assertion.AvatarURL); err != nil {
					return nil, fmt.Errorf("error linking provider: %w", err)
				}
				user.Provider = assertion.Provider
				user.ProviderID = assertion.ProviderID
				if assertion.AvatarURL != "" {
					user.AvatarURL = assertion.AvatarURL
				}
			}
			return user, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("error searching by email: %w", err)
		}
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Name:          assertion.Name,
		Email:         email,
		Provider:      assertion.Provider,
		ProviderID:    assertion.ProviderID,
		AvatarURL:     assertion.AvatarURL,
		EmailVerified: email != "",
	}
	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating federated user: %w", err)
	}
	return created, nil
}
