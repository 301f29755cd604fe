package auth

import (
	"context"
	stderrors "errors"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-storefront-auth/middleware/jwtware"
)

// DefaultTokenLookup reads the session cookie first, then the bearer header
const DefaultTokenLookup = "cookie:auth,header:Authorization"

// Authorize decides whether the claims may pass a route that admits allowed
func Authorize(claims AuthClaims, allowed RoleSet) error {
	if claims == nil {
		return ErrMissingToken
	}
	role, ok := ParseRole(claims.Role())
	if !ok || !allowed.Contains(role) {
		return ErrForbidden.Clone().WithMetadata(map[string]any{
			"role":    claims.Role(),
			"allowed": allowed.String(),
		})
	}
	return nil
}

// AccessGuardOption customizes the guard
type AccessGuardOption func(*AccessGuard)

// WithGuardContextKey changes the router locals key for claims
func WithGuardContextKey(key string) AccessGuardOption {
	return func(g *AccessGuard) {
		if key != "" {
			g.contextKey = key
		}
	}
}

// WithGuardTokenLookup changes where tokens are read from
func WithGuardTokenLookup(lookup string) AccessGuardOption {
	return func(g *AccessGuard) {
		if lookup != "" {
			g.tokenLookup = lookup
		}
	}
}

// WithGuardErrorHandler replaces the JSON error response
func WithGuardErrorHandler(h router.ErrorHandler) AccessGuardOption {
	return func(g *AccessGuard) {
		if h != nil {
			g.errorHandler = h
		}
	}
}

// WithGuardActivitySink records rejected requests
func WithGuardActivitySink(sink ActivitySink) AccessGuardOption {
	return func(g *AccessGuard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) AccessGuardOption {
	return func(g *AccessGuard) {
		g.logger = normalizeLogger(logger)
	}
}

// AccessGuard authenticates requests from their session token and
// authorizes them against per-route role sets
type AccessGuard struct {
	validator    TokenValidator
	contextKey   string
	tokenLookup  string
	errorHandler router.ErrorHandler
	activitySink ActivitySink
	logger       Logger
}

// NewAccessGuard returns a guard validating tokens with validator
func NewAccessGuard(validator TokenValidator, opts ...AccessGuardOption) *AccessGuard {
	g := &AccessGuard{
		validator:    validator,
		contextKey:   DefaultContextKey,
		tokenLookup:  DefaultTokenLookup,
		errorHandler: WriteError,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ContextKey returns the locals key claims are stored under
func (g *AccessGuard) ContextKey() string {
	return g.contextKey
}

// Authenticated admits any request carrying a valid token
func (g *AccessGuard) Authenticated() router.MiddlewareFunc {
	return jwtware.New(g.config(nil))
}

// RequireRoles admits valid tokens whose role is in roles
func (g *AccessGuard) RequireRoles(roles ...Role) router.MiddlewareFunc {
	allowed := NewRoleSet(roles...)
	return jwtware.New(g.config(func(c jwtware.AuthClaims) error {
		claims, ok := c.(AuthClaims)
		if !ok {
			return ErrInvalidSignature
		}
		return Authorize(claims, allowed)
	}))
}

// Optional stores the claims when a valid token is present and lets every
// request through
func (g *AccessGuard) Optional() router.MiddlewareFunc {
	cfg := g.config(nil)
	cfg.Optional = true
	cfg.OnOptionalFailure = func(_ router.Context, err error) {
		g.logger.Debug("optional auth failed, proceeding", "error", err)
	}
	return jwtware.New(cfg)
}

func (g *AccessGuard) config(authorizer func(jwtware.AuthClaims) error) jwtware.Config {
	return jwtware.Config{
		TokenValidator: jwtwareValidator{validator: g.validator},
		ContextKey:     g.contextKey,
		TokenLookup:    g.tokenLookup,
		Authorizer:     authorizer,
		ErrorHandler:   g.handleError,
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			authClaims, ok := claims.(AuthClaims)
			if !ok {
				return c
			}
			return WithClaimsContext(c, authClaims)
		},
	}
}

func (g *AccessGuard) handleError(ctx router.Context, err error) error {
	richErr := guardError(err)

	event := ActivityEvent{
		EventType: ActivityEventAccessDenied,
		Actor:     ActorRef{Type: "anonymous"},
		Metadata:  failureMetadata(richErr, map[string]any{"path": ctx.OriginalURL()}),
	}
	recordActivity(ctx.Context(), g.activitySink, g.logger, event)

	return g.errorHandler(ctx, richErr)
}

func guardError(err error) *errors.Error {
	if stderrors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return ErrMissingToken
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}
	return wrapAs(err, ErrInvalidSignature)
}

type jwtwareValidator struct {
	validator TokenValidator
}

func (v jwtwareValidator) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := v.validator.Validate(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
