package social

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-errors"
)

// ProfileAuthenticator turns a proven provider profile into a session.
// *auth.Auther implements it.
type ProfileAuthenticator interface {
	LoginWithProfile(ctx context.Context, profile auth.ProviderProfile) (*auth.LoginResult, error)
}

// SocialAuthenticator runs the authorization code flow for the registered
// providers and hands the resulting profile to the session layer.
type SocialAuthenticator struct {
	providers    map[string]SocialProvider
	stateManager StateManager
	sessions     ProfileAuthenticator
	activitySink auth.ActivitySink
	logger       auth.Logger
	config       SocialAuthConfig
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	DefaultRedirectURL string
	StateSecret        string
	StateTTL           time.Duration
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a social authenticator. Without WithStateManager
// the state keys are derived from config.StateSecret.
func NewSocialAuthenticator(sessions ProfileAuthenticator, config SocialAuthConfig, opts ...SocialAuthOption) *SocialAuthenticator {
	if config.StateTTL <= 0 {
		config.StateTTL = DefaultStateTTL
	}

	sa := &SocialAuthenticator{
		providers: make(map[string]SocialProvider),
		sessions:  sessions,
		config:    config,
		logger:    nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil {
		sa.stateManager = NewStateManagerFromSecret(config.StateSecret, config.StateTTL)
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[normalizeProvider(provider.Name())] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

// WithActivitySink records flow failures that happen before the session layer is reached.
func WithActivitySink(sink auth.ActivitySink) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.activitySink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// Provider returns a registered provider
func (sa *SocialAuthenticator) Provider(name string) (SocialProvider, bool) {
	p, ok := sa.providers[normalizeProvider(name)]
	return p, ok
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(ctx context.Context, providerName string, opts ...BeginAuthOption) (*AuthRedirect, error) {
	providerName = normalizeProvider(providerName)
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound.Clone().WithMetadata(map[string]any{"provider": providerName})
	}

	cfg := &beginAuthConfig{redirectURL: sa.config.DefaultRedirectURL}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate code verifier")
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate state nonce")
	}

	stateToken, err := sa.stateManager.Encode(&OAuthState{
		Nonce:        nonce,
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode state")
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken, WithPKCE(computeCodeChallenge(codeVerifier), "S256")),
		State:    stateToken,
		Nonce:    nonce,
		Provider: providerName,
	}, nil
}

// CompleteAuth checks the state, exchanges the code, fetches the profile and
// logs the profile in through the session layer. browserNonce is the nonce
// the browser that started the flow holds, it must match the sealed state.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken, browserNonce string) (*AuthResult, error) {
	providerName = normalizeProvider(providerName)

	result, err := sa.completeAuth(ctx, providerName, code, stateToken, browserNonce)
	if err != nil {
		sa.logger.Debug("social callback error", "provider", providerName, "error", err)
	}
	return result, err
}

func (sa *SocialAuthenticator) completeAuth(ctx context.Context, providerName, code, stateToken, browserNonce string) (*AuthResult, error) {
	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		return nil, sa.fail(ctx, providerName, err)
	}

	if state.Provider != providerName {
		return nil, sa.fail(ctx, providerName,
			ErrInvalidState.Clone().WithMetadata(map[string]any{"reason": "provider mismatch"}))
	}

	if !nonceMatches(state.Nonce, browserNonce) {
		return nil, sa.fail(ctx, providerName,
			ErrInvalidState.Clone().WithMetadata(map[string]any{"reason": "nonce mismatch"}))
	}

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, sa.fail(ctx, providerName, ErrProviderNotFound)
	}

	if strings.TrimSpace(code) == "" {
		return nil, sa.fail(ctx, providerName,
			ErrTokenExchangeFailed.Clone().WithMetadata(map[string]any{"reason": "missing code"}))
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, sa.fail(ctx, providerName, providerFailure(ErrTokenExchangeFailed, providerName, err))
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, sa.fail(ctx, providerName, providerFailure(ErrUserInfoFailed, providerName, err))
	}

	providerProfile := profile.ToProviderProfile()
	if providerProfile.Provider == "" {
		providerProfile.Provider = providerName
	}

	login, err := sa.sessions.LoginWithProfile(ctx, providerProfile)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Login:       login,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// Fail records a flow failure that happened before the session layer was reached
func (sa *SocialAuthenticator) Fail(ctx context.Context, providerName string, err error) error {
	return sa.fail(ctx, normalizeProvider(providerName), err)
}

func (sa *SocialAuthenticator) fail(ctx context.Context, providerName string, err error) error {
	if sa.activitySink == nil {
		return err
	}

	meta := map[string]any{"provider": providerName, "error": err.Error()}
	if rich := auth.AsRichError(err); rich != nil {
		meta["error_code"] = rich.TextCode
	}

	if rerr := sa.activitySink.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventSocialLoginFailure,
		Actor:      auth.ActorRef{Type: providerName},
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	}); rerr != nil {
		sa.logger.Warn("social activity sink error", "error", rerr)
	}
	return err
}

// ListProviders returns the registered provider names.
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	return names
}

// AuthRedirect contains the authorization URL for redirecting users.
// Nonce must be handed to the browser, CompleteAuth expects it back.
type AuthRedirect struct {
	URL      string
	State    string
	Nonce    string
	Provider string
}

// AuthResult is a completed provider login.
type AuthResult struct {
	Login       *auth.LoginResult
	Provider    string
	Profile     *SocialProfile
	RedirectURL string
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		if url != "" {
			c.redirectURL = url
		}
	}
}

func nonceMatches(sealed, presented string) bool {
	if sealed == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sealed), []byte(presented)) == 1
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
