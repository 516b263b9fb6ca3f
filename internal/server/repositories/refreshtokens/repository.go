// Package refreshtokens declares the repository contract for the refresh
// ledger.
package refreshtokens

import (
	"context"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

// Repository defines operations on persisted refresh-token records. Rows
// are looked up by the sha256 hash of the raw secret; raw secrets never
// reach this layer.
type Repository interface {
	// Create inserts a new ledger row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the row with the given token hash, including
	// revoked and expired rows; validity is the caller's judgement.
	// Absent rows yield common.ErrNotFound.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// RevokeByHash marks the row revoked. Revoking an absent or
	// already-revoked row is a no-op, not an error.
	RevokeByHash(ctx context.Context, tokenHash string) error

	// ConsumeByHash atomically revokes a still-usable row and returns it.
	// Rows that are absent, revoked, or expired at now yield
	// common.ErrNotFound, so two concurrent consumers of the same token
	// admit at most one winner.
	ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// DeleteExpired purges revoked rows and rows expired at now, and
	// returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
