package federation

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/avasilyev-dev/authkeeper/internal/common"
)

// ProviderConfig holds the relying-party settings for one OIDC provider.
type ProviderConfig struct {
	Issuer       string `json:"issuer"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}

type providerData struct {
	provider *oidc.Provider
	oauth    *oauth2.Config
}

// OIDCClient is a relying-party client for a set of named OIDC providers.
// Provider discovery happens once, at construction.
type OIDCClient struct {
	providers map[string]*providerData
}

// NewOIDCClient discovers every configured provider and prepares an OAuth2
// config for it.
func NewOIDCClient(ctx context.Context, configs map[string]ProviderConfig) (*OIDCClient, error) {
	providers := make(map[string]*providerData, len(configs))

	for name, cfg := range configs {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %s: %w", name, err)
		}

		providers[name] = &providerData{
			provider: provider,
			oauth: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     provider.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
		}
	}

	return &OIDCClient{providers: providers}, nil
}

// AuthCodeURL returns the provider's authorization URL carrying the given
// anti-CSRF state. Unknown providers yield common.ErrNotFound.
func (c *OIDCClient) AuthCodeURL(providerName, state string) (string, error) {
	p, ok := c.providers[providerName]
	if !ok {
		return "", common.ErrNotFound
	}
	return p.oauth.AuthCodeURL(state), nil
}

// Exchange redeems the authorization code, verifies the returned ID token
// and maps its claims to an Assertion.
func (c *OIDCClient) Exchange(ctx context.Context, providerName, code string) (*Assertion, error) {
	p, ok := c.providers[providerName]
	if !ok {
		return nil, common.ErrNotFound
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response: %w", common.ErrInvalidToken)
	}

	verifier := p.provider.Verifier(&oidc.Config{ClientID: p.oauth.ClientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verifying id token: %v: %w", err, common.ErrInvalidToken)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parsing id token claims: %w", err)
	}

	return &Assertion{
		Provider:   providerName,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		AvatarURL:  claims.Picture,
	}, nil
}
