package models

import "time"

// Otp is the single active one-time code for an (email, purpose) pair.
// Issuing a new code upserts over the old one, so at most one row per pair
// exists at any time.
type Otp struct {
	Email     string
	Purpose   string
	OtpHash   string
	ExpiresAt time.Time
	Used      bool
	Attempts  int
	IssuedAt  time.Time
}
