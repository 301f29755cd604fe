package social

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-router"
)

// DefaultNonceCookieName is the cookie that ties a callback to the browser
// that started the flow
const DefaultNonceCookieName = "oauth_nonce"

// HTTPController serves the begin and callback routes of one provider.
type HTTPController struct {
	provider      string
	authenticator *SocialAuthenticator
	cookies       *auth.SessionCookies
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// SuccessRedirect is where a completed login lands
	SuccessRedirect string

	// FailureRedirect receives `error=<text code>` on failure
	FailureRedirect string

	// NonceCookieName holds the browser half of the state binding
	NonceCookieName string

	Logger auth.Logger
}

// NewHTTPController creates a controller for provider. cookies writes the
// session cookie on success.
func NewHTTPController(sa *SocialAuthenticator, provider string, cookies *auth.SessionCookies, cfg HTTPConfig) *HTTPController {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = "/login"
	}
	if cfg.NonceCookieName == "" {
		cfg.NonceCookieName = DefaultNonceCookieName
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cookies == nil {
		cookies = auth.NewSessionCookies("", 0, false)
	}

	return &HTTPController{
		provider:      normalizeProvider(provider),
		authenticator: sa,
		cookies:       cookies,
		config:        cfg,
	}
}

// ProviderName is the path segment the routes are mounted on
func (c *HTTPController) ProviderName() string {
	return c.provider
}

// Begin redirects the browser to the provider authorize page.
func (c *HTTPController) Begin(ctx router.Context) error {
	redirect, err := c.authenticator.BeginAuth(ctx.Context(), c.provider)
	if err != nil {
		return c.fail(ctx, err)
	}
	c.setNonce(ctx, redirect.Nonce)
	return ctx.Redirect(redirect.URL, http.StatusTemporaryRedirect)
}

// Callback completes the flow, sets the session cookie and redirects.
func (c *HTTPController) Callback(ctx router.Context) error {
	nonce := ctx.Cookies(c.config.NonceCookieName, "")
	c.clearNonce(ctx)

	if providerErr := ctx.Query("error", ""); providerErr != "" {
		err := ErrAccessDenied.Clone().WithMetadata(map[string]any{
			"provider_error": providerErr,
			"description":    ctx.Query("error_description", ""),
		})
		return c.fail(ctx, c.authenticator.Fail(ctx.Context(), c.provider, err))
	}

	result, err := c.authenticator.CompleteAuth(
		ctx.Context(),
		c.provider,
		ctx.Query("code", ""),
		ctx.Query("state", ""),
		nonce,
	)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.cookies.Set(ctx, result.Login.Token, result.Login.ExpiresAt)

	redirectURL := result.RedirectURL
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}
	return ctx.Redirect(redirectURL, http.StatusFound)
}

// the provider redirect is a cross site top level GET, Lax still sends the cookie
func (c *HTTPController) setNonce(ctx router.Context, nonce string) {
	ttl := c.authenticator.config.StateTTL
	ctx.Cookie(&router.Cookie{
		Name:     c.config.NonceCookieName,
		Value:    nonce,
		Path:     c.cookies.Path,
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   c.cookies.Secure,
		SameSite: "Lax",
	})
}

func (c *HTTPController) clearNonce(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     c.config.NonceCookieName,
		Value:    "",
		Path:     c.cookies.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   c.cookies.Secure,
		SameSite: "Lax",
	})
}

func (c *HTTPController) fail(ctx router.Context, err error) error {
	richErr := auth.AsRichError(err)
	if auth.HTTPStatus(richErr) >= 500 {
		c.config.Logger.Error("social login failed", "provider", c.provider, "error", richErr)
	} else {
		c.config.Logger.Debug("social login rejected", "provider", c.provider, "code", richErr.TextCode)
	}
	return ctx.Redirect(appendQueryParam(c.config.FailureRedirect, "error", richErr.TextCode), http.StatusFound)
}

var _ auth.ProviderRoutes = (*HTTPController)(nil)

func appendQueryParam(rawURL, key, value string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
