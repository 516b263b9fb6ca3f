// Package common contains shared constants and sentinel errors used across
// authkeeper components.
package common

import "errors"

var (
	// repository specific errors
	ErrNotFound = errors.New("not found")

	// ErrValidation reports missing or malformed caller input. Always
	// recoverable, safe to show to the caller.
	ErrValidation = errors.New("validation error")

	// ErrInvalidCredentials is returned for any login failure. It never
	// distinguishes "unknown user" from "wrong password".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidCode is returned for any one-time-code failure: absent,
	// wrong, expired, already used, or attempts exhausted.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrInvalidToken covers every token verification failure: malformed,
	// mis-signed, expired, or revoked. Opaque on purpose.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired reports a credential past its lifetime where
	// distinguishing it from ErrInvalidToken is safe.
	ErrExpired = errors.New("expired")

	// ErrConflict reports a duplicate email on signup.
	ErrConflict = errors.New("already exists")

	// ErrIdentityIncomplete reports a federation assertion that carries
	// neither a stable provider id nor a usable email.
	ErrIdentityIncomplete = errors.New("identity assertion incomplete")

	// ErrUnavailable wraps every store-layer failure. Retrying is the
	// transport's job, not ours.
	ErrUnavailable = errors.New("storage unavailable")

	ErrInternal = errors.New("internal error")
)
