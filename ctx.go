package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key holding the request claims
const DefaultContextKey = "user"

type claimsKey struct{}

// WithClaimsContext stores claims in a standard context for code below the
// HTTP layer
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaims returns the claims stored by WithClaimsContext
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsKey{}).(AuthClaims)
	return claims, ok && claims != nil
}

// GetRouterClaims returns the claims the access guard stored under key
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	claims, ok := ctx.Locals(key).(AuthClaims)
	return claims, ok && claims != nil
}
