// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh ledger.
package refreshtokens

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

// Create inserts a new ledger row.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_by_ip)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedByIP)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByHash returns the row for the given token hash, revoked or not.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked, created_by_ip, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt,
		&token.Revoked, &token.CreatedByIP, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// RevokeByHash marks the row revoked; zero affected rows is still success.
func (r *PostgresRepository) RevokeByHash(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ConsumeByHash revokes and returns a still-usable row in one conditional
// statement. The WHERE clause is what makes concurrent rotation safe.
func (r *PostgresRepository) ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
		RETURNING id, user_id, token_hash, expires_at, created_by_ip, created_at
	`
	token := &models.RefreshToken{Revoked: true}
	err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt,
		&token.CreatedByIP, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// DeleteExpired purges revoked and expired rows.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE revoked = TRUE OR expires_at <= $1
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
