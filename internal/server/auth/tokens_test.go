package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/common"
)

func newTestService(accessTTL, refreshTTL time.Duration) *TokenService {
	return NewTokenService([]byte("access-secret"), []byte("refresh-secret"), accessTTL, refreshTTL)
}

func TestSignAccess_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, 24*time.Hour)

	tok, err := s.SignAccess("user-42", "a@b.com")
	if err != nil {
		t.Fatalf("SignAccess error: %v", err)
	}

	claims, err := s.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("VerifyAccess error: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("subject mismatch: got %q", claims.Subject)
	}
	if claims.Email != "a@b.com" {
		t.Fatalf("email mismatch: got %q", claims.Email)
	}
}

func TestVerifyAccess_Expired(t *testing.T) {
	t.Parallel()

	s := newTestService(-1*time.Second, 24*time.Hour)

	tok, err := s.SignAccess("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("SignAccess error: %v", err)
	}

	_, err = s.VerifyAccess(tok)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, 24*time.Hour)
	other := NewTokenService([]byte("different"), []byte("refresh-secret"), time.Hour, 24*time.Hour)

	tok, err := s.SignAccess("u2", "")
	if err != nil {
		t.Fatalf("SignAccess error: %v", err)
	}

	_, err = other.VerifyAccess(tok)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for mis-signed token, got %v", err)
	}
}

func TestVerifyAccess_Malformed(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, 24*time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := s.VerifyAccess(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestVerifyAccess_RejectsRefreshToken(t *testing.T) {
	t.Parallel()

	// Distinct secrets mean a refresh token must never verify as access.
	s := newTestService(time.Hour, 24*time.Hour)

	_, refresh, _, err := s.SignRefresh("u3")
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}

	if _, err := s.VerifyAccess(refresh); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignRefresh_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, 24*time.Hour)

	raw, tok, expiresAt, err := s.SignRefresh("user-7")
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw secret must be 64 hex chars (256 bits), got %d", len(raw))
	}
	if until := time.Until(expiresAt); until < 23*time.Hour {
		t.Fatalf("expiry too close: %v", until)
	}

	claims, err := s.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("VerifyRefresh error: %v", err)
	}
	if claims.Subject != "user-7" {
		t.Fatalf("subject mismatch: got %q", claims.Subject)
	}
	if claims.RawSecret != raw {
		t.Fatalf("raw secret not embedded in claims")
	}
}

func TestSignRefresh_FreshSecretPerToken(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, 24*time.Hour)

	rawA, _, _, err := s.SignRefresh("u")
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}
	rawB, _, _, err := s.SignRefresh("u")
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}
	if rawA == rawB {
		t.Fatalf("two refresh tokens reused the same raw secret")
	}
}

func TestVerifyRefresh_Expired(t *testing.T) {
	t.Parallel()

	s := newTestService(time.Hour, -1*time.Second)

	_, tok, _, err := s.SignRefresh("u4")
	if err != nil {
		t.Fatalf("SignRefresh error: %v", err)
	}

	if _, err := s.VerifyRefresh(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired refresh token, got %v", err)
	}
}
