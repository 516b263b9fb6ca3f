// Package auth implements the stateless token service: signing and
// verifying the compact JWTs used as access and refresh credentials.
//
// Access tokens carry {sub, email, exp} and live for minutes. Refresh
// tokens carry {sub, rawSecret, exp} and live for weeks; the rawSecret is
// a 256-bit random value whose hash the refresh ledger persists, so a
// refresh JWT is only trusted after the ledger confirms it.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avasilyev-dev/authkeeper/internal/common"
	"github.com/avasilyev-dev/authkeeper/internal/shared"
)

const rawSecretBytes = 32 // 256 bits of entropy per refresh token

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// RefreshClaims are the verified contents of a refresh token. RawSecret
// must still be checked against the refresh ledger before the claims are
// trusted.
type RefreshClaims struct {
	jwt.RegisteredClaims
	RawSecret string `json:"rawSecret"`
}

// TokenService signs and verifies access and refresh tokens. Two
// independent HMAC secrets are used so neither token kind verifies under
// the other's key.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// SignAccess mints an access token for the user. Stateless, no side
// effects.
func (s *TokenService) SignAccess(userID, email string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// SignRefresh mints a refresh token embedding a fresh random raw secret.
// The caller must persist hashing.FastHash(rawSecret) in the ledger and
// hand the signed token to the client; the raw secret itself is returned
// only so the hash can be computed.
func (s *TokenService) SignRefresh(userID string) (rawSecret, token string, expiresAt time.Time, err error) {
	rawSecret, err = shared.MakeRandHexString(rawSecretBytes)
	if err != nil {
		return "", "", time.Time{}, err
	}

	now := time.Now()
	expiresAt = now.Add(s.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		RawSecret: rawSecret,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return rawSecret, token, expiresAt, nil
}

// VerifyAccess checks signature and expiry. Every failure collapses to
// common.ErrInvalidToken so callers cannot distinguish expired from
// tampered input.
func (s *TokenService) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(token, claims, s.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry. A passing result is
// necessary but not sufficient: the ledger remains the source of truth
// for revocation.
func (s *TokenService) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(token, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.RawSecret == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
