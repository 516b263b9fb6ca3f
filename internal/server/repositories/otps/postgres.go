// Package otps provides a PostgreSQL-backed repository for one-time codes.
package otps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/dbx"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces the code for (email, purpose). The conflict
// branch resets used and attempts so a reissued code starts clean.
func (r *PostgresRepository) Upsert(ctx context.Context, otp *models.Otp) error {
	query := `
		INSERT INTO otps (email, purpose, otp_hash, expires_at, used, attempts, issued_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, $5)
		ON CONFLICT (email, purpose) DO UPDATE SET
			otp_hash = EXCLUDED.otp_hash,
			expires_at = EXCLUDED.expires_at,
			used = FALSE,
			attempts = 0,
			issued_at = EXCLUDED.issued_at
	`
	_, err := r.db.ExecContext(ctx, query,
		otp.Email, otp.Purpose, otp.OtpHash, otp.ExpiresAt, otp.IssuedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the row for (email, purpose) or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, email, purpose string) (*models.Otp, error) {
	query := `
		SELECT email, purpose, otp_hash, expires_at, used, attempts, issued_at
		FROM otps
		WHERE email = $1 AND purpose = $2
	`
	otp := &models.Otp{}
	err := r.db.QueryRowContext(ctx, query, email, purpose).Scan(
		&otp.Email, &otp.Purpose, &otp.OtpHash, &otp.ExpiresAt,
		&otp.Used, &otp.Attempts, &otp.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return otp, nil
}

// Consume marks the row used in one conditional statement. The WHERE
// clause carries every liveness check, so a code that two verifiers race
// over is accepted exactly once.
func (r *PostgresRepository) Consume(ctx context.Context, email, purpose, otpHash string, now time.Time, maxAttempts int) error {
	query := `
		UPDATE otps SET used = TRUE
		WHERE email = $1 AND purpose = $2 AND otp_hash = $3
			AND used = FALSE AND expires_at > $4 AND attempts < $5
	`
	res, err := r.db.ExecContext(ctx, query, email, purpose, otpHash, now, maxAttempts)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// IncrementAttempts bumps the counter and returns the new value.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, email, purpose string) (int, error) {
	query := `
		UPDATE otps SET attempts = attempts + 1
		WHERE email = $1 AND purpose = $2
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, email, purpose).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

// DeleteExpired purges used rows and rows expired at now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM otps
		WHERE used = TRUE OR expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
