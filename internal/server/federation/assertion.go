// Package federation talks to external identity providers over OIDC and
// turns their callbacks into provider-neutral assertions.
package federation

// Assertion is what an identity provider vouches for after a successful
// authorization-code exchange. Provider plus ProviderID identify the
// external account; the rest is profile data.
type Assertion struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}
