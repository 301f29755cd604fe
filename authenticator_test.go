package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
)

// MockVerifier implements auth.CredentialVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, email, password string) (*auth.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockVerifier) VerifyProvider(ctx context.Context, profile auth.ProviderProfile) (*auth.User, bool, error) {
	args := m.Called(ctx, profile)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Bool(1), args.Error(2)
}

func newTestAuther(verifier auth.CredentialVerifier, sink auth.ActivitySink) (*auth.Auther, *auth.TokenService) {
	tokens := auth.NewTokenService(testSecret, time.Hour, "storefront", auth.WithTokenLogger(nopLogger{}))
	return auth.NewAuthenticator(verifier, tokens).
		WithLogger(nopLogger{}).
		WithActivitySink(sink), tokens
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()
	user := localUser(t, "user-1", "a@b.com", "secret1", auth.RoleUser)

	t.Run("success issues a token for the identity", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("Verify", ctx, "a@b.com", "secret1").Return(user, nil).Once()
		sink := &recordingSink{}
		auther, tokens := newTestAuther(verifier, sink)

		result, err := auther.Login(ctx, "a@b.com", "secret1")
		require.NoError(t, err)
		assert.Same(t, user, result.User)
		assert.False(t, result.Created)
		assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 2*time.Second)

		claims, err := tokens.Validate(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
		assert.Equal(t, "a@b.com", claims.Email())
		assert.Equal(t, "user", claims.Role())

		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, sink.Types())
		assert.Equal(t, "user-1", sink.Last().UserID)
		verifier.AssertExpectations(t)
	})

	t.Run("failure records the error code and issues nothing", func(t *testing.T) {
		verifier := new(MockVerifier)
		verifier.On("Verify", ctx, "a@b.com", "wrong").Return(nil, auth.ErrInvalidCredentials).Once()
		sink := &recordingSink{}
		auther, _ := newTestAuther(verifier, sink)

		result, err := auther.Login(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Nil(t, result)

		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginFailure}, sink.Types())
		assert.Equal(t, auth.TextCodeInvalidCredentials, sink.Last().ErrorCode())
		assert.Equal(t, "a@b.com", sink.Last().Metadata["email"])
	})
}

func TestAuther_LoginWithProfile(t *testing.T) {
	ctx := context.Background()
	profile := auth.ProviderProfile{Provider: "github", ProviderUserID: "42", Username: "octo"}
	user := &auth.User{
		ID:         "user-9",
		Email:      "octo@users.noreply.github.com",
		Role:       auth.RoleUser,
		Credential: auth.ProviderCredential{Provider: "github", ProviderUserID: "42"},
	}

	verifier := new(MockVerifier)
	verifier.On("VerifyProvider", ctx, profile).Return(user, true, nil).Once()
	sink := &recordingSink{}
	auther, _ := newTestAuther(verifier, sink)

	result, err := auther.LoginWithProfile(ctx, profile)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEmpty(t, result.Token)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSocialLogin}, sink.Types())
	assert.Equal(t, "github", sink.Last().Metadata["method"])
	assert.Equal(t, true, sink.Last().Metadata["created"])

	verifier.On("VerifyProvider", ctx, profile).Return(nil, false, auth.ErrEmailTaken).Once()
	_, err = auther.LoginWithProfile(ctx, profile)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	assert.Equal(t, auth.ActivityEventSocialLoginFailure, sink.Last().EventType)
	assert.Equal(t, auth.TextCodeEmailTaken, sink.Last().ErrorCode())
}

func TestAuther_SinkErrorsDoNotFailLogin(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockVerifier)
	verifier.On("Verify", ctx, "a@b.com", "secret1").Return(localUser(t, "user-1", "a@b.com", "secret1", auth.RoleUser), nil)

	failing := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return assert.AnError
	})
	auther, _ := newTestAuther(verifier, failing)

	result, err := auther.Login(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}
