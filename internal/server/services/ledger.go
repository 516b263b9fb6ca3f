// Package services contains server-side business logic: the refresh
// ledger, one-time codes, identity federation, and the auth orchestrator.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/dbx"
	"github.com/avasilyev-dev/authkeeper/internal/server/hashing"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/repomanager"
)

// RefreshLedger keeps the server-side record of issued refresh tokens.
// Only sha256 hashes of raw secrets are stored; a leaked database row
// cannot be replayed as a token.
type RefreshLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewRefreshLedger constructs a RefreshLedger over the given database.
func NewRefreshLedger(db *sql.DB, m repomanager.RepositoryManager) *RefreshLedger {
	return &RefreshLedger{db: db, repomanager: m}
}

// Store records a freshly issued refresh secret for the user. It accepts
// any DBTX so callers can enroll the write in a wider transaction.
func (l *RefreshLedger) Store(ctx context.Context, db dbx.DBTX, userID, rawSecret string, expiresAt time.Time, ip string) error {
	repo := l.repomanager.RefreshTokens(db)
	token := &models.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   hashing.FastHash(rawSecret),
		ExpiresAt:   expiresAt,
		CreatedByIP: ip,
	}
	if err := repo.Create(ctx, token); err != nil {
		return fmt.Errorf("error storing refresh token: %w", err)
	}
	return nil
}

// Validate checks that the raw secret maps to a usable ledger row and
// returns it. Absent, revoked, and expired rows all collapse to
// common.ErrNotFound.
func (l *RefreshLedger) Validate(ctx context.Context, rawSecret string) (*models.RefreshToken, error) {
	repo := l.repomanager.RefreshTokens(l.db)
	token, err := repo.FindByHash(ctx, hashing.FastHash(rawSecret))
	if err != nil {
		return nil, err
	}
	if !token.Usable(time.Now()) {
		return nil, common.ErrNotFound
	}
	return token, nil
}

// Revoke marks the row for the raw secret revoked. Revoking an unknown
// secret is a no-op.
func (l *RefreshLedger) Revoke(ctx context.Context, rawSecret string) error {
	repo := l.repomanager.RefreshTokens(l.db)
	return repo.RevokeByHash(ctx, hashing.FastHash(rawSecret))
}

// Rotate consumes the old secret and records the new one in a single
// transaction. The consumed row is returned so the caller learns the
// owning user. If the old secret is absent, already consumed, or expired,
// Rotate returns common.ErrNotFound and stores nothing.
func (l *RefreshLedger) Rotate(ctx context.Context, oldRawSecret, newRawSecret string, expiresAt time.Time, ip string) (*models.RefreshToken, error) {
	var consumed *models.RefreshToken
	err := dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.repomanager.RefreshTokens(tx)

		old, err := repo.ConsumeByHash(ctx, hashing.FastHash(oldRawSecret), time.Now())
		if err != nil {
			return err
		}

		token := &models.RefreshToken{
			ID:          uuid.NewString(),
			UserID:      old.UserID,
			TokenHash:   hashing.FastHash(newRawSecret),
			ExpiresAt:   expiresAt,
			CreatedByIP: ip,
		}
		if err := repo.Create(ctx, token); err != nil {
			return fmt.Errorf("error storing rotated refresh token: %w", err)
		}

		consumed = old
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// Sweep purges revoked and expired rows and reports how many went away.
func (l *RefreshLedger) Sweep(ctx context.Context) (int64, error) {
	repo := l.repomanager.RefreshTokens(l.db)
	return repo.DeleteExpired(ctx, time.Now())
}
