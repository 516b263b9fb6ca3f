// Package models contains plain row types shared by repositories and
// services.
package models

import "time"

// User is one credential record. Email is stored lowercased. PasswordHash
// is empty for federation-only accounts; Provider/ProviderID are empty for
// local-password accounts. An authenticatable record has at least one of
// the two.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Provider      string
	ProviderID    string
	AvatarURL     string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether local password login is possible.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Federated reports whether a provider identity is linked.
func (u *User) Federated() bool {
	return u.Provider != "" && u.ProviderID != ""
}
