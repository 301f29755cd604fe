package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-storefront-auth"
)

func TestJWTClaims_UserID(t *testing.T) {
	t.Run("returns UID when present", func(t *testing.T) {
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
			UID:              "uid456",
		}
		assert.Equal(t, "uid456", claims.UserID())
		assert.Equal(t, "user123", claims.Subject())
	})

	t.Run("falls back to subject", func(t *testing.T) {
		claims := &auth.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"}}
		assert.Equal(t, "user123", claims.UserID())
	})
}

func TestJWTClaims_Roles(t *testing.T) {
	for _, role := range []string{"user", "premium", "admin"} {
		t.Run(role, func(t *testing.T) {
			claims := &auth.JWTClaims{UserRole: role}
			assert.True(t, claims.HasRole(role))
			assert.True(t, claims.IsAtLeast("user"))
		})
	}

	assert.False(t, (&auth.JWTClaims{}).HasRole(""))
	assert.False(t, (&auth.JWTClaims{UserRole: "guest"}).IsAtLeast("user"))
	assert.True(t, (&auth.JWTClaims{UserRole: "admin"}).IsAtLeast("premium"))
	assert.False(t, (&auth.JWTClaims{UserRole: "user"}).IsAtLeast("premium"))
}

func TestJWTClaims_Times(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))

	empty := &auth.JWTClaims{}
	assert.True(t, empty.Expires().IsZero())
	assert.True(t, empty.IssuedAt().IsZero())
}
