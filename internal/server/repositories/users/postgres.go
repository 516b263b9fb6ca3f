// Package users provides a PostgreSQL-backed repository for credential
// records.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/dbx"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(password_hash, ''),
		COALESCE(provider, ''), COALESCE(provider_id, ''), COALESCE(avatar_url, ''),
		email_verified, created_at, updated_at`

// Create inserts a new credential record. Optional fields are stored as
// NULL so the partial unique indexes behave. Duplicate email or provider
// identity maps to common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, name, email, password_hash, provider, provider_id, avatar_url, email_verified)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash,
		user.Provider, user.ProviderID, user.AvatarURL, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByID returns the record with the given id or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail returns the record with the given email or common.ErrNotFound.
// Emails are stored lowercased; callers normalize before lookup.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// GetByProvider returns the record linked to the federated identity or
// common.ErrNotFound.
func (r *PostgresRepository) GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, provider, providerID))
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = NULLIF($2, ''), updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

// LinkProvider attaches the provider identity. The password hash is left
// untouched so local login keeps working after a federation merge.
func (r *PostgresRepository) LinkProvider(ctx context.Context, id, provider, providerID, avatarURL string) error {
	query := `
		UPDATE users SET provider = $2, provider_id = $3,
			avatar_url = COALESCE(NULLIF($4, ''), avatar_url), updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, provider, providerID, avatarURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Provider, &user.ProviderID, &user.AvatarURL,
		&user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
