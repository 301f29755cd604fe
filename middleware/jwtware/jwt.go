// Package jwtware reads a session token from a request, validates it and
// stores the claims in the request locals.
package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrAccessDenied          = errors.New("access denied")
)

const (
	DefaultContextKey  = "user"
	DefaultTokenLookup = "cookie:auth,header:" + router.HeaderAuthorization
	DefaultAuthScheme  = "Bearer"
)

// AuthClaims is the part of the session claims the middleware reads
type AuthClaims interface {
	UserID() string
	Role() string
}

// TokenValidator turns a raw token into claims
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

type Config struct {
	// TokenValidator is required
	TokenValidator TokenValidator
	// ErrorHandler answers rejected requests
	ErrorHandler router.ErrorHandler
	// ContextKey is the locals key the claims are stored under
	ContextKey string
	// TokenLookup lists the token sources in order, e.g.
	// "cookie:auth,header:Authorization,query:token"
	TokenLookup string
	// AuthScheme prefixes header tokens
	AuthScheme string

	// Authorizer runs after validation. A non nil error rejects the request
	// and is handed to the ErrorHandler as is.
	Authorizer func(AuthClaims) error

	// ContextEnricher copies the claims into the request context
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// Optional lets requests without a valid token through unauthenticated
	Optional bool
	// OnOptionalFailure observes tokens rejected in optional mode
	OnOptionalFailure func(ctx router.Context, err error)
}

// New returns the middleware for config
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				if cfg.Optional {
					return next(ctx)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				if cfg.Optional {
					if cfg.OnOptionalFailure != nil {
						cfg.OnOptionalFailure(ctx, err)
					}
					return next(ctx)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.Authorizer != nil {
				if err := cfg.Authorizer(claims); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, claims)
			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return next(ctx)
		}
	}
}

// ExtractRawTokenFromContext runs the extractors in order and returns the
// first token found
func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	for _, extractor := range extractors {
		if raw := extractor(ctx); raw != "" {
			return raw, nil
		}
	}
	return "", ErrJWTMissingOrMalformed
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrAccessDenied) {
				return c.Status(router.StatusForbidden).SendString(err.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("invalid or expired token")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}

	return cfg
}

// JWTExtractor returns the raw token or an empty string
type JWTExtractor func(c router.Context) string

// GetExtractors parses a lookup such as "cookie:auth,header:Authorization".
// Unknown sources are skipped.
func GetExtractors(tokenLookup string, authScheme string) []JWTExtractor {
	if strings.TrimSpace(authScheme) == "" {
		authScheme = DefaultAuthScheme
	}

	var extractors []JWTExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		source, key, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		switch strings.TrimSpace(source) {
		case "header":
			extractors = append(extractors, fromHeader(key, strings.TrimSpace(authScheme)))
		case "query":
			extractors = append(extractors, fromQuery(key))
		case "cookie":
			extractors = append(extractors, fromCookie(key))
		}
	}

	return extractors
}

func fromHeader(header, authScheme string) JWTExtractor {
	return func(c router.Context) string {
		value := c.Header(header)
		scheme, token, ok := strings.Cut(value, " ")
		if !ok || !strings.EqualFold(scheme, authScheme) {
			return ""
		}
		return strings.TrimSpace(token)
	}
}

func fromQuery(param string) JWTExtractor {
	return func(c router.Context) string {
		return c.Query(param, "")
	}
}

func fromCookie(name string) JWTExtractor {
	return func(c router.Context) string {
		return c.Cookies(name)
	}
}
