// Package otps declares the repository contract for one-time codes.
package otps

import (
	"context"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

// Repository defines operations on persisted one-time codes. At most one
// code exists per (email, purpose) pair; issuing a new one replaces the
// previous row.
type Repository interface {
	// Upsert inserts the code or replaces the existing row for the same
	// (email, purpose), resetting used and attempts.
	Upsert(ctx context.Context, otp *models.Otp) error

	// Get returns the row for the pair or common.ErrNotFound.
	Get(ctx context.Context, email, purpose string) (*models.Otp, error)

	// Consume atomically marks the row used, but only if the hash
	// matches and the row is unused, unexpired at now, and under the
	// attempt cap. When no row qualifies it yields common.ErrNotFound,
	// so two concurrent consumers of the same code admit at most one
	// winner.
	Consume(ctx context.Context, email, purpose, otpHash string, now time.Time, maxAttempts int) error

	// IncrementAttempts bumps the failed-attempt counter and returns the
	// new value. Absent rows yield common.ErrNotFound.
	IncrementAttempts(ctx context.Context, email, purpose string) (int, error)

	// DeleteExpired purges used rows and rows expired at now, and returns
	// the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
