package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/server/hashing"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/repomanager"
	"github.com/avasilyev-dev/authkeeper/internal/shared"
)

// Purpose values for one-time codes.
const (
	OtpPurposeReset = "reset"
)

const (
	otpCodeMin = 100000
	otpCodeMax = 999999

	defaultMaxAttempts = 5
)

// OTPService issues and verifies short-lived numeric codes. One live code
// per (email, purpose); reissuing replaces the previous code.
type OTPService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
}

// NewOTPService constructs an OTPService with the given validity window,
// reissue cooldown, and failed-attempt cap. A cap of 0 or less selects
// defaultMaxAttempts.
func NewOTPService(db *sql.DB, m repomanager.RepositoryManager, ttl, cooldown time.Duration, maxAttempts int) *OTPService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &OTPService{
		db:          db,
		repomanager: m,
		ttl:         ttl,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
	}
}

// Issue generates a fresh code for (email, purpose) and returns it for
// delivery. If a code was issued within the cooldown window, Issue
// returns an empty string and no error, so callers respond identically
// whether or not a code went out.
func (s *OTPService) Issue(ctx context.Context, email, purpose string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || purpose == "" {
		return "", common.ErrValidation
	}

	repo := s.repomanager.Otps(s.db)
	now := time.Now()

	existing, err := repo.Get(ctx, email, purpose)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("error loading otp: %w", err)
	}
	if err == nil && !existing.Used && now.Sub(existing.IssuedAt) < s.cooldown {
		return "", nil
	}

	code, err := shared.MakeRandNumericCode(otpCodeMin, otpCodeMax)
	if err != nil {
		return "", common.ErrInternal
	}

	otp := &models.Otp{
		Email:     email,
		Purpose:   purpose,
		OtpHash:   hashing.FastHash(code),
		ExpiresAt: now.Add(s.ttl),
		IssuedAt:  now,
	}
	if err := repo.Upsert(ctx, otp); err != nil {
		return "", fmt.Errorf("error storing otp: %w", err)
	}
	return code, nil
}

// Verify checks the code for (email, purpose) and consumes it on success.
// Every failure mode comes back as common.ErrInvalidCode: absent row,
// consumed row, expired code, attempt cap reached, or plain mismatch.
// A mismatch burns an attempt. The final consume is a single conditional
// update, so a code raced by two verifiers is accepted at most once.
func (s *OTPService) Verify(ctx context.Context, email, purpose, code string) error {
	email = normalizeEmail(email)
	if email == "" || purpose == "" || code == "" {
		return common.ErrInvalidCode
	}

	repo := s.repomanager.Otps(s.db)

	otp, err := repo.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCode
		}
		return fmt.Errorf("error loading otp: %w", err)
	}

	if otp.Used || !otp.ExpiresAt.After(time.Now()) || otp.Attempts >= s.maxAttempts {
		return common.ErrInvalidCode
	}

	if !hashing.FastEqual(otp.OtpHash, hashing.FastHash(code)) {
		if _, err := repo.IncrementAttempts(ctx, email, purpose); err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("error counting otp attempt: %w", err)
		}
		return common.ErrInvalidCode
	}

	err = repo.Consume(ctx, email, purpose, hashing.FastHash(code), time.Now(), s.maxAttempts)
	if err != nil {
		// Another verifier won the race between our read and this write.
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCode
		}
		return fmt.Errorf("error consuming otp: %w", err)
	}
	return nil
}

// PurgeExpired removes used and expired codes.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	repo := s.repomanager.Otps(s.db)
	return repo.DeleteExpired(ctx, time.Now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
