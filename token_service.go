package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long a session token stays valid
const DefaultTokenTTL = time.Hour

// TokenService issues and validates HS256 session tokens. It keeps no record
// of issued tokens.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithClock replaces the wall clock, used by tests
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, opts ...TokenServiceOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	ts := &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// TTL returns the token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue mints a token for the identity and returns it with its expiry
func (ts *TokenService) Issue(identity Identity) (string, time.Time, error) {
	if identity == nil || identity.ID() == "" {
		return "", time.Time{}, errors.New("identity is required", errors.CategoryBadInput)
	}

	if len(ts.signingKey) == 0 {
		return "", time.Time{}, errors.New("signing key is not configured", errors.CategoryInternal)
	}

	// JWT dates have second precision
	now := ts.now().Truncate(time.Second)
	expiresAt := now.Add(ts.ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  string(identity.Role()),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Validate authenticates a token and returns its claims.
// Expiry is checked before the signature so an expired token always reports
// ErrExpired.
func (ts *TokenService) Validate(tokenString string) (AuthClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	unverified := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		ts.logger.Debug("TokenService validate could not decode token", "error", err)
		return nil, wrapAs(err, ErrInvalidSignature)
	}

	if unverified.ExpiresAt == nil {
		return nil, ErrInvalidSignature
	}

	if !ts.now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		ts.logger.Debug("TokenService validate rejected token", "error", err)
		return nil, wrapAs(err, ErrInvalidSignature)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrInvalidSignature
	}

	return claims, nil
}

var _ TokenIssuer = (*TokenService)(nil)
