package social

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
)

// SocialProvider is an OAuth2 authorization code provider used for sign in.
type SocialProvider interface {
	// Name returns the provider identifier, e.g. "github".
	Name() string

	// AuthCodeURL returns the authorize URL carrying state and PKCE challenge.
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error)

	// UserInfo fetches the profile the token grants access to.
	UserInfo(ctx context.Context, token *Token) (*SocialProfile, error)
}

// AuthCodeOption configures the authorization URL.
type AuthCodeOption func(*AuthCodeConfig)

// WithScopes adds scopes to the provider defaults.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(c *AuthCodeConfig) {
		c.Scopes = append(c.Scopes, scopes...)
	}
}

// WithPKCE sets the code challenge sent on the authorize request.
func WithPKCE(codeChallenge, method string) AuthCodeOption {
	return func(c *AuthCodeConfig) {
		c.CodeChallenge = codeChallenge
		c.CodeChallengeMethod = method
	}
}

// ExchangeOption configures the token exchange.
type ExchangeOption func(*ExchangeConfig)

// WithCodeVerifier sets the PKCE verifier sent on token exchange.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(c *ExchangeConfig) {
		c.CodeVerifier = verifier
	}
}

// AuthCodeConfig is the applied set of authorize options
type AuthCodeConfig struct {
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ExchangeConfig is the applied set of exchange options
type ExchangeConfig struct {
	CodeVerifier string
}

// ApplyAuthCodeOptions resolves options on top of the provider default scopes.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := AuthCodeConfig{Scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ApplyExchangeOptions resolves exchange options.
func ApplyExchangeOptions(opts ...ExchangeOption) ExchangeConfig {
	cfg := ExchangeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Token is an OAuth2 token response.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Scopes      []string
}

// SocialProfile is the normalized profile a provider returns.
// Email is empty unless the provider reported a verified address.
type SocialProfile struct {
	Provider       string
	ProviderUserID string
	Username       string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}

// ToProviderProfile converts the provider view into what the session flow consumes.
func (p *SocialProfile) ToProviderProfile() auth.ProviderProfile {
	if p == nil {
		return auth.ProviderProfile{}
	}

	profile := auth.ProviderProfile{
		Provider:       strings.ToLower(strings.TrimSpace(p.Provider)),
		ProviderUserID: strings.TrimSpace(p.ProviderUserID),
		Username:       strings.TrimSpace(p.Username),
		DisplayName:    strings.TrimSpace(p.Name),
	}
	if p.EmailVerified {
		profile.Email = auth.NormalizeEmail(p.Email)
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Username
	}
	return profile
}
