package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/logging"
	"github.com/avasilyev-dev/authkeeper/internal/server/auth"
	"github.com/avasilyev-dev/authkeeper/internal/server/federation"
	"github.com/avasilyev-dev/authkeeper/internal/server/hashing"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
	"github.com/avasilyev-dev/authkeeper/internal/server/notify"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService is the orchestrator: it owns the signup, login, refresh,
// logout and password-reset flows and delegates the mechanics to the
// token service, ledger, OTP service, and federation bridge.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	hasher      hashing.Hasher
	ledger      *RefreshLedger
	otps        *OTPService
	bridge      *FederationBridge
	sender      notify.Sender
	logger      logging.Logger
}

// NewAuthService wires the orchestrator from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService,
	hasher hashing.Hasher, ledger *RefreshLedger, otps *OTPService,
	bridge *FederationBridge, sender notify.Sender, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		hasher:      hasher,
		ledger:      ledger,
		otps:        otps,
		bridge:      bridge,
		sender:      sender,
		logger:      logger,
	}
}

// SignUp creates a local account and signs the new user in. A taken email
// yields common.ErrConflict.
func (s *AuthService) SignUp(ctx context.Context, name, email, password, ip string) (*models.User, *TokenPair, error) {
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, nil, common.ErrValidation
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, common.ErrInternal
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, nil, common.ErrConflict
		}
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}

	pair, err := s.issueTokens(ctx, user, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies the email/password pair and mints tokens. Unknown email,
// password-less federated accounts, and a wrong password all collapse to
// common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*models.User, *TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, common.ErrInvalidCredentials
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.HasPassword() {
		return nil, nil, common.ErrInvalidCredentials
	}
	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the presented refresh token and mints a fresh pair.
// Any failure, signature, ledger, or otherwise, collapses to
// common.ErrInvalidToken; a rejected token is never distinguishable from
// an already-consumed one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	newSecret, newToken, expiresAt, err := s.tokens.SignRefresh(claims.Subject)
	if err != nil {
		return nil, common.ErrInternal
	}

	consumed, err := s.ledger.Rotate(ctx, claims.RawSecret, newSecret, expiresAt, ip)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, consumed.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	access, err := s.tokens.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, common.ErrInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: newToken}, nil
}

// Logout revokes the ledger row behind the refresh token. It always
// succeeds: an unparsable or unknown token has nothing left to revoke.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.ledger.Revoke(ctx, claims.RawSecret); err != nil {
		s.logger.Warn(ctx, "refresh token revocation failed", "error", err)
	}
	return nil
}

// RequestPasswordReset issues a reset code and sends it to the address.
// The response is identical whether or not the account exists; delivery
// failures are logged, not surfaced.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	code, err := s.otps.Issue(ctx, email, OtpPurposeReset)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return common.ErrValidation
		}
		return fmt.Errorf("error issuing reset code: %w", err)
	}
	if code == "" {
		return nil
	}

	body := fmt.Sprintf("Your password reset code is %s. It expires in a few minutes.", code)
	if err := s.sender.Send(ctx, normalizeEmail(email), "Password reset code", body); err != nil {
		s.logger.Error(ctx, "reset code delivery failed", "error", err)
	}
	return nil
}

// ResetPassword consumes a valid reset code and replaces the password.
// A valid code for an unknown account still reads as common.ErrInvalidCode.
// The new password must differ from the current one.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if newPassword == "" {
		return common.ErrValidation
	}

	if err := s.otps.Verify(ctx, email, OtpPurposeReset, code); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCode
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	if user.HasPassword() && s.hasher.Compare(newPassword, user.PasswordHash) {
		return common.ErrValidation
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return common.ErrInternal
	}
	if err := repo.UpdatePasswordHash(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

// FederatedLogin resolves a provider assertion to a local user and signs
// them in.
func (s *AuthService) FederatedLogin(ctx context.Context, assertion federation.Assertion, ip string) (*models.User, *TokenPair, error) {
	user, err := s.bridge.Resolve(ctx, assertion)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.issueTokens(ctx, user, ip)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Me resolves an access token to its user.
func (s *AuthService) Me(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, ip string) (*TokenPair, error) {
	access, err := s.tokens.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, common.ErrInternal
	}

	rawSecret, refresh, expiresAt, err := s.tokens.SignRefresh(user.ID)
	if err != nil {
		return nil, common.ErrInternal
	}
	if err := s.ledger.Store(ctx, s.db, user.ID, rawSecret, expiresAt, ip); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
