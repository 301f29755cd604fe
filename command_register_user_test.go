package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
)

func TestRegistrar_Register(t *testing.T) {
	ctx := context.Background()
	store := newMemoryUsers()
	sink := &recordingSink{}
	registrar := auth.NewRegistrar(store).WithLogger(nopLogger{}).WithActivitySink(sink)

	user, err := registrar.Register(ctx, auth.RegisterUserMessage{
		Email:    " A@B.com ",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, "a", user.DisplayName)
	assert.Equal(t, auth.RoleUser, user.Role)

	hash, ok := user.PasswordHash()
	require.True(t, ok)
	assert.NotEqual(t, "secret1", hash)
	assert.NoError(t, auth.ComparePasswordAndHash("secret1", hash))

	assert.Equal(t, auth.ActivityEventRegister, sink.Last().EventType)

	_, err = registrar.Register(ctx, auth.RegisterUserMessage{Email: "a@b.com", Password: "another1"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	assert.Equal(t, auth.ActivityEventRegisterFailure, sink.Last().EventType)
	assert.Equal(t, auth.TextCodeEmailTaken, sink.Last().ErrorCode())
}

func TestRegistrar_Validation(t *testing.T) {
	registrar := auth.NewRegistrar(newMemoryUsers()).WithLogger(nopLogger{})

	tests := []struct {
		name  string
		msg   auth.RegisterUserMessage
		field string
	}{
		{name: "bad email", msg: auth.RegisterUserMessage{Email: "not-an-email", Password: "secret1"}, field: "email"},
		{name: "missing email", msg: auth.RegisterUserMessage{Password: "secret1"}, field: "email"},
		{name: "short password", msg: auth.RegisterUserMessage{Email: "a@b.com", Password: "123"}, field: "password"},
		{name: "missing password", msg: auth.RegisterUserMessage{Email: "a@b.com"}, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registrar.Register(context.Background(), tt.msg)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeValidation))

			body := auth.NewErrorResponse(err)
			assert.Equal(t, "VALIDATION_ERROR", body.Error)
			assert.Contains(t, body.Fields, tt.field)
		})
	}
}

func TestRegistrar_HashidIDs(t *testing.T) {
	registrar := auth.NewRegistrar(newMemoryUsers()).WithLogger(nopLogger{}).WithHashid(true)

	user, err := registrar.Register(context.Background(), auth.RegisterUserMessage{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	expected, err := hashid.NewUUID("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, expected.String(), user.ID)
}

func TestRegistrar_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := new(MockUsers)
	_, err := auth.NewRegistrar(store).WithLogger(nopLogger{}).Register(ctx, auth.RegisterUserMessage{Email: "a@b.com", Password: "secret1"})
	require.Error(t, err)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
