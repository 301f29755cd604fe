package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
)

func TestUserValidate(t *testing.T) {
	valid := func() *auth.User {
		return &auth.User{
			ID:         "user-1",
			Email:      "a@b.com",
			Role:       auth.RoleUser,
			Credential: auth.LocalCredential{Hash: "$2a$10$hash"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*auth.User)
		field  string
	}{
		{name: "valid local"},
		{name: "valid provider", mutate: func(u *auth.User) {
			u.Credential = auth.ProviderCredential{Provider: "github", ProviderUserID: "42"}
		}},
		{name: "email not normalized", mutate: func(u *auth.User) { u.Email = "A@b.com" }, field: "email"},
		{name: "email invalid", mutate: func(u *auth.User) { u.Email = "nope" }, field: "email"},
		{name: "role invalid", mutate: func(u *auth.User) { u.Role = "owner" }, field: "role"},
		{name: "no credential", mutate: func(u *auth.User) { u.Credential = nil }, field: "credential"},
		{name: "empty hash", mutate: func(u *auth.User) { u.Credential = auth.LocalCredential{} }, field: "credential"},
		{name: "half provider link", mutate: func(u *auth.User) {
			u.Credential = auth.ProviderCredential{Provider: "github"}
		}, field: "credential"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			if tt.mutate != nil {
				tt.mutate(u)
			}
			err := u.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, auth.NewErrorResponse(err).Fields, tt.field)
		})
	}
}

func TestUserCredentialAccessors(t *testing.T) {
	local := &auth.User{Credential: auth.LocalCredential{Hash: "h"}}
	hash, ok := local.PasswordHash()
	assert.True(t, ok)
	assert.Equal(t, "h", hash)
	_, linked := local.ProviderLink()
	assert.False(t, linked)
	assert.Equal(t, "local", local.Credential.Method())

	provider := &auth.User{Credential: auth.ProviderCredential{Provider: "github", ProviderUserID: "42"}}
	_, ok = provider.PasswordHash()
	assert.False(t, ok)
	link, ok := provider.ProviderLink()
	assert.True(t, ok)
	assert.Equal(t, "42", link.ProviderUserID)
	assert.Equal(t, "github", provider.Credential.Method())

	var nilUser *auth.User
	_, ok = nilUser.PasswordHash()
	assert.False(t, ok)
}

func TestUserSummaryHidesCredential(t *testing.T) {
	u := &auth.User{
		ID:          "user-1",
		Email:       "a@b.com",
		DisplayName: "A",
		Role:        auth.RolePremium,
		Credential:  auth.LocalCredential{Hash: "$2a$10$secret"},
	}

	summary := u.Summary()
	assert.Equal(t, "local", summary.AuthMethod)
	assert.Equal(t, auth.RolePremium, summary.Role)

	for _, v := range []any{u, summary} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret")
	}
}

func TestNewIdentityFromUser(t *testing.T) {
	assert.Nil(t, auth.NewIdentityFromUser(nil))

	identity := auth.NewIdentityFromUser(&auth.User{ID: "user-1", Email: "a@b.com", DisplayName: "A", Role: auth.RoleAdmin})
	assert.Equal(t, "user-1", identity.ID())
	assert.Equal(t, "a@b.com", identity.Email())
	assert.Equal(t, "A", identity.DisplayName())
	assert.Equal(t, auth.RoleAdmin, identity.Role())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", auth.NormalizeEmail("  A@B.Com\t"))
}
