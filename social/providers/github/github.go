// Package github signs users in with a GitHub OAuth app.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/goliatone/go-storefront-auth/social"
)

// ProviderName is the route segment and credential provider name
const ProviderName = "github"

const (
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	// Scopes defaults to user:email, needed to read the primary address
	Scopes []string

	// Endpoint overrides, used against a fake server in tests
	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// Provider implements social.SocialProvider for GitHub
type Provider struct {
	oauth      oauth2.Config
	userURL    string
	emailsURL  string
	httpClient *http.Client
}

func New(cfg Config) *Provider {
	endpoint := oauthgithub.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// GitHub takes the client credentials in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user:email"}
	}

	p := &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userURL:    defaultUserURL,
		emailsURL:  defaultEmailsURL,
		httpClient: cfg.HTTPClient,
	}
	if cfg.UserURL != "" {
		p.userURL = cfg.UserURL
	}
	if cfg.EmailsURL != "" {
		p.emailsURL = cfg.EmailsURL
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return p
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	applied := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	conf := p.oauth
	conf.Scopes = applied.Scopes

	var params []oauth2.AuthCodeOption
	if applied.CodeChallenge != "" {
		method := applied.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", applied.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", method),
		)
	}

	return conf.AuthCodeURL(state, params...)
}

// Exchange trades the code for an access token. GitHub reports grant errors
// with a 200 status, oauth2 surfaces both shapes as a RetrieveError.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	applied := social.ApplyExchangeOptions(opts...)

	var params []oauth2.AuthCodeOption
	if applied.CodeVerifier != "" {
		params = append(params, oauth2.SetAuthURLParam("code_verifier", applied.CodeVerifier))
	}

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, params...)
	if err != nil {
		return nil, exchangeError(err)
	}

	scope, _ := tok.Extra("scope").(string)
	return &social.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.Expiry,
		Scopes:      splitScopes(scope),
	}, nil
}

// UserInfo reads the account and its primary verified email. The email is
// left empty when the account has none or the scope was not granted.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &social.ProviderError{Provider: ProviderName, Op: "user_info", Code: "missing_access_token"}
	}

	client := p.oauth.Client(p.clientContext(ctx), &oauth2.Token{AccessToken: token.AccessToken, TokenType: "Bearer"})

	var user githubUser
	if err := getJSON(ctx, client, "user_info", p.userURL, &user); err != nil {
		return nil, err
	}

	var emails []githubEmail
	if err := getJSON(ctx, client, "emails", p.emailsURL, &emails); err != nil {
		emails = nil
	}

	return mapProfile(&user, primaryVerifiedEmail(emails)), nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func getJSON(ctx context.Context, client *http.Client, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := client.Do(req)
	if err != nil {
		return &social.ProviderError{Provider: ProviderName, Op: op, Code: "transport", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &social.ProviderError{Provider: ProviderName, Op: op, Status: res.StatusCode, Code: "transport", Err: err}
	}

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return &social.ProviderError{Provider: ProviderName, Op: op, Status: res.StatusCode, Message: apiErr.Message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &social.ProviderError{Provider: ProviderName, Op: op, Status: res.StatusCode, Code: "invalid_response", Err: err}
	}
	return nil
}

func exchangeError(err error) error {
	perr := &social.ProviderError{Provider: ProviderName, Op: "exchange", Err: err}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
		perr.Code = rerr.ErrorCode
		perr.Message = rerr.ErrorDescription
		return perr
	}

	perr.Code = "transport"
	return perr
}

func splitScopes(scope string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(scope, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, s)
	}
	return out
}
