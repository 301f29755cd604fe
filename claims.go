package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the verified content of a session token. The role is the
// one the identity held when the token was issued.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the token payload: registered claims plus uid, email and role
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID prefers the uid claim and falls back to sub
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

func (c *JWTClaims) Email() string {
	return c.UserEmail
}

func (c *JWTClaims) Role() string {
	return c.UserRole
}

func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole != "" && c.UserRole == role
}

func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return Role(c.UserRole).IsAtLeast(Role(minRole))
}

// Expires is zero for tokens without exp, which Validate never returns
func (c *JWTClaims) Expires() time.Time {
	return numericTime(c.RegisteredClaims.ExpiresAt)
}

func (c *JWTClaims) IssuedAt() time.Time {
	return numericTime(c.RegisteredClaims.IssuedAt)
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
