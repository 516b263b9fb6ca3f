package models

import "time"

// RefreshToken is one row in the refresh ledger. TokenHash is the sha256
// of the raw secret embedded in the issued refresh JWT; the raw secret is
// never persisted. Once Revoked is set the row is terminal.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenHash   string
	ExpiresAt   time.Time
	Revoked     bool
	CreatedByIP string
	CreatedAt   time.Time
}

// Usable reports whether the row is valid at the given instant. The ledger
// lookup is authoritative for revocation, so this must hold regardless of
// whether a sweep has run.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
