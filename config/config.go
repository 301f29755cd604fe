// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-storefront-auth"
)

// Config holds every setting of the storefront auth service
type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	SigningSecret string        `env:"SIGNING_SECRET,required"`
	PrevSecret    string        `env:"SIGNING_SECRET_PREVIOUS"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	TokenIssuer   string        `env:"TOKEN_ISSUER" envDefault:"storefront"`
	CookieName    string        `env:"COOKIE_NAME" envDefault:"auth"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`
	ContextKey    string        `env:"CONTEXT_KEY" envDefault:"user"`
	RoutePrefix   string        `env:"ROUTE_PREFIX" envDefault:"/api/sessions"`

	DatabaseURL  string `env:"DATABASE_URL,required"`
	DatabaseName string `env:"DATABASE_NAME" envDefault:"storefront"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
	OAuthStateKey      string `env:"OAUTH_STATE_KEY"`

	SuccessRedirect string `env:"SUCCESS_REDIRECT" envDefault:"/home"`
	FailureRedirect string `env:"FAILURE_REDIRECT" envDefault:"/login"`
	CORSOrigin      string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9090"`
	BcryptCost    int    `env:"BCRYPT_COST" envDefault:"10"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	HashidUserIDs bool   `env:"HASHID_USER_IDS" envDefault:"false"`
}

var _ auth.Config = (*Config)(nil)

// Load reads the optional dotenv files into the process environment and
// parses it. Missing dotenv files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read dotenv file").
				WithMetadata(map[string]any{"file": file})
		}
	}

	return parse(env.Options{})
}

// FromMap parses configuration from an explicit environment
func FromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid environment configuration")
	}

	cfg.RoutePrefix = "/" + strings.Trim(cfg.RoutePrefix, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env parsing cannot express
func (c *Config) Validate() error {
	var githubRules []validation.Rule
	if c.GitHubClientID != "" {
		githubRules = append(githubRules, validation.Required)
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.SigningSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.PrevSecret, validation.Length(16, 0)),
		validation.Field(&c.TokenTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.BcryptCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
		validation.Field(&c.CORSOrigin, is.URL),
		validation.Field(&c.GitHubClientSecret, githubRules...),
		validation.Field(&c.GitHubCallbackURL, append(githubRules, is.URL)...),
	)
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for k, v := range verrs {
			fields[k] = v.Error()
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").WithMetadata(fields)
}

// GitHubEnabled reports whether GitHub login is configured
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != ""
}

// StateSecret is the key material for the OAuth state, the signing secret
// when no dedicated key is set
func (c *Config) StateSecret() string {
	if c.OAuthStateKey != "" {
		return c.OAuthStateKey
	}
	return c.SigningSecret
}

func (c *Config) GetSigningKey() string         { return c.SigningSecret }
func (c *Config) GetPreviousSigningKey() string { return c.PrevSecret }
func (c *Config) GetTokenTTL() time.Duration    { return c.TokenTTL }
func (c *Config) GetIssuer() string             { return c.TokenIssuer }
func (c *Config) GetCookieName() string         { return c.CookieName }
func (c *Config) GetCookieSecure() bool         { return c.CookieSecure }
func (c *Config) GetContextKey() string         { return c.ContextKey }
func (c *Config) GetRoutePrefix() string        { return c.RoutePrefix }
func (c *Config) GetSuccessRedirect() string    { return c.SuccessRedirect }
func (c *Config) GetFailureRedirect() string    { return c.FailureRedirect }

// GetTokenLookup lists where the session token is read from, cookie first
func (c *Config) GetTokenLookup() string {
	return "cookie:" + c.CookieName + ",header:Authorization"
}
