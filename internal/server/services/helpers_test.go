package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avasilyev-dev/authkeeper/internal/dbx"
	"github.com/avasilyev-dev/authkeeper/internal/logging"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
	otpsrepo "github.com/avasilyev-dev/authkeeper/internal/server/repositories/otps"
	refreshtokensrepo "github.com/avasilyev-dev/authkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/avasilyev-dev/authkeeper/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byIDOut *models.User
	byIDErr error

	byEmailOut *models.User
	byEmailErr error

	byProviderOut *models.User
	byProviderErr error

	updateHashErr error
	updatedHash   string

	linkErr    error
	linkedID   string
	linkedProv string
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmailOut, nil
}

func (f *fakeUsersRepo) GetByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	if f.byProviderErr != nil {
		return nil, f.byProviderErr
	}
	return f.byProviderOut, nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	f.updatedHash = hash
	return f.updateHashErr
}

func (f *fakeUsersRepo) LinkProvider(ctx context.Context, id, provider, providerID, avatarURL string) error {
	f.linkedID = id
	f.linkedProv = provider
	return f.linkErr
}

type fakeRefreshRepo struct {
	createErr error
	created   []*models.RefreshToken

	findOut *models.RefreshToken
	findErr error

	revokeErr   error
	revokedHash string

	consumeOut *models.RefreshToken
	consumeErr error

	deleteN   int64
	deleteErr error
}

func (f *fakeRefreshRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) RevokeByHash(ctx context.Context, hash string) error {
	f.revokedHash = hash
	return f.revokeErr
}

func (f *fakeRefreshRepo) ConsumeByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.consumeOut, nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.deleteN, f.deleteErr
}

type fakeOtpsRepo struct {
	upsertErr error
	upserted  *models.Otp

	getOut *models.Otp
	getErr error

	consumeErr error
	consumed   bool

	incOut int
	incErr error
	incs   int

	deleteN   int64
	deleteErr error
}

func (f *fakeOtpsRepo) Upsert(ctx context.Context, otp *models.Otp) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = otp
	return nil
}

func (f *fakeOtpsRepo) Get(ctx context.Context, email, purpose string) (*models.Otp, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeOtpsRepo) Consume(ctx context.Context, email, purpose, otpHash string, now time.Time, maxAttempts int) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = true
	return nil
}

func (f *fakeOtpsRepo) IncrementAttempts(ctx context.Context, email, purpose string) (int, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.incs++
	return f.incOut, nil
}

func (f *fakeOtpsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.deleteN, f.deleteErr
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	o *fakeOtpsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}
func (m *fakeRepoManager) Otps(db dbx.DBTX) otpsrepo.Repository { return m.o }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

type fakeSender struct {
	err  error
	to   string
	body string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.to = to
	f.body = body
	return f.err
}
