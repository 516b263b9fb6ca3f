package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/server/hashing"
	"github.com/avasilyev-dev/authkeeper/internal/server/models"
)

func newOTPService(t *testing.T, repo *fakeOtpsRepo) *OTPService {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	return NewOTPService(db, &fakeRepoManager{o: repo}, 5*time.Minute, time.Minute, 5)
}

func TestOTPIssue_Success(t *testing.T) {
	repo := &fakeOtpsRepo{getErr: common.ErrNotFound}
	s := newOTPService(t, repo)

	code, err := s.Issue(context.Background(), "  Alice@Example.com ", OtpPurposeReset)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Fatalf("want a 6-digit code, got %q", code)
	}
	if repo.upserted == nil {
		t.Fatal("code not stored")
	}
	if repo.upserted.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", repo.upserted.Email)
	}
	if repo.upserted.OtpHash != hashing.FastHash(code) {
		t.Fatal("code must be stored hashed")
	}
}

func TestOTPIssue_EmptyEmail(t *testing.T) {
	s := newOTPService(t, &fakeOtpsRepo{})

	_, err := s.Issue(context.Background(), "   ", OtpPurposeReset)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want common.ErrValidation, got %v", err)
	}
}

func TestOTPIssue_CooldownSuppresses(t *testing.T) {
	repo := &fakeOtpsRepo{
		getOut: &models.Otp{IssuedAt: time.Now().Add(-10 * time.Second), ExpiresAt: time.Now().Add(4 * time.Minute)},
	}
	s := newOTPService(t, repo)

	code, err := s.Issue(context.Background(), "a@b.com", OtpPurposeReset)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if code != "" {
		t.Fatalf("reissue inside cooldown must be silent, got %q", code)
	}
	if repo.upserted != nil {
		t.Fatal("nothing may be stored inside the cooldown window")
	}
}

func TestOTPIssue_CooldownElapsed(t *testing.T) {
	repo := &fakeOtpsRepo{
		getOut: &models.Otp{IssuedAt: time.Now().Add(-2 * time.Minute)},
	}
	s := newOTPService(t, repo)

	code, err := s.Issue(context.Background(), "a@b.com", OtpPurposeReset)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if code == "" || repo.upserted == nil {
		t.Fatal("a new code must be issued once the cooldown has elapsed")
	}
}

func TestOTPVerify_Success(t *testing.T) {
	repo := &fakeOtpsRepo{
		getOut: &models.Otp{
			OtpHash:   hashing.FastHash("123456"),
			ExpiresAt: time.Now().Add(time.Minute),
		},
	}
	s := newOTPService(t, repo)

	if err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, "123456"); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !repo.consumed {
		t.Fatal("a verified code must be consumed")
	}
}

func TestOTPVerify_LostConsumeRace(t *testing.T) {
	// The read sees a live matching code, but another verifier consumes
	// it before our conditional update lands.
	repo := &fakeOtpsRepo{
		getOut: &models.Otp{
			OtpHash:   hashing.FastHash("123456"),
			ExpiresAt: time.Now().Add(time.Minute),
		},
		consumeErr: common.ErrNotFound,
	}
	s := newOTPService(t, repo)

	err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, "123456")
	if !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("losing the consume race must read as invalid code, got %v", err)
	}
}

func TestOTPService_ZeroAttemptCapUsesDefault(t *testing.T) {
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	repo := &fakeOtpsRepo{
		getOut: &models.Otp{
			OtpHash:   hashing.FastHash("123456"),
			ExpiresAt: time.Now().Add(time.Minute),
		},
	}
	s := NewOTPService(db, &fakeRepoManager{o: repo}, 5*time.Minute, time.Minute, 0)

	if err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, "123456"); err != nil {
		t.Fatalf("a zero attempt cap must fall back to the default, got %v", err)
	}
	if !repo.consumed {
		t.Fatal("code not consumed")
	}
}

func TestOTPVerify_Failures(t *testing.T) {
	valid := func() *models.Otp {
		return &models.Otp{
			OtpHash:   hashing.FastHash("123456"),
			ExpiresAt: time.Now().Add(time.Minute),
		}
	}

	cases := []struct {
		name string
		otp  func() *models.Otp
		code string
	}{
		{"expired", func() *models.Otp { o := valid(); o.ExpiresAt = time.Now().Add(-time.Second); return o }, "123456"},
		{"used", func() *models.Otp { o := valid(); o.Used = true; return o }, "123456"},
		{"attempt cap", func() *models.Otp { o := valid(); o.Attempts = 5; return o }, "123456"},
		{"wrong code", valid, "654321"},
		{"empty code", valid, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeOtpsRepo{getOut: tc.otp()}
			s := newOTPService(t, repo)

			err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, tc.code)
			if !errors.Is(err, common.ErrInvalidCode) {
				t.Fatalf("want common.ErrInvalidCode, got %v", err)
			}
			if repo.consumed {
				t.Fatal("a rejected code must not be consumed")
			}
		})
	}
}

func TestOTPVerify_MismatchBurnsAttempt(t *testing.T) {
	repo := &fakeOtpsRepo{
		getOut: &models.Otp{
			OtpHash:   hashing.FastHash("123456"),
			ExpiresAt: time.Now().Add(time.Minute),
		},
	}
	s := newOTPService(t, repo)

	if err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, "000000"); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want common.ErrInvalidCode, got %v", err)
	}
	if repo.incs != 1 {
		t.Fatalf("mismatch must increment attempts once, got %d", repo.incs)
	}
}

func TestOTPVerify_AbsentRow(t *testing.T) {
	s := newOTPService(t, &fakeOtpsRepo{getErr: common.ErrNotFound})

	err := s.Verify(context.Background(), "a@b.com", OtpPurposeReset, "123456")
	if !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want common.ErrInvalidCode, got %v", err)
	}
}

func TestOTPPurgeExpired(t *testing.T) {
	s := newOTPService(t, &fakeOtpsRepo{deleteN: 7})

	n, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired error: %v", err)
	}
	if n != 7 {
		t.Fatalf("want 7 purged rows, got %d", n)
	}
}
