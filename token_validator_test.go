package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
)

type validatorStub struct {
	calls  int
	claims auth.AuthClaims
	err    error
}

func (v *validatorStub) Validate(tokenString string) (auth.AuthClaims, error) {
	v.calls++
	return v.claims, v.err
}

func TestMultiTokenValidator_UsesFirstSuccess(t *testing.T) {
	claims := &auth.JWTClaims{}
	primary := &validatorStub{claims: claims}
	secondary := &validatorStub{claims: &auth.JWTClaims{}}

	validator := auth.NewMultiTokenValidator(primary, secondary)

	result, err := validator.Validate("token")
	require.NoError(t, err)
	assert.Same(t, claims, result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestMultiTokenValidator_FallbacksOnSignatureFailure(t *testing.T) {
	claims := &auth.JWTClaims{}
	primary := &validatorStub{err: auth.ErrInvalidSignature}
	secondary := &validatorStub{claims: claims}

	validator := auth.NewMultiTokenValidator(primary, nil, secondary)

	result, err := validator.Validate("token")
	require.NoError(t, err)
	assert.Same(t, claims, result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestMultiTokenValidator_StopsOnExpired(t *testing.T) {
	primary := &validatorStub{err: auth.ErrExpired}
	secondary := &validatorStub{claims: &auth.JWTClaims{}}

	validator := auth.NewMultiTokenValidator(primary, secondary)

	_, err := validator.Validate("token")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeTokenExpired))
	assert.Equal(t, 0, secondary.calls)
}

func TestMultiTokenValidator_RotatedSecret(t *testing.T) {
	previous := auth.NewTokenService([]byte("previous-secret-0123456789"), time.Hour, "storefront")
	current := auth.NewTokenService([]byte("current-secret-0123456789"), time.Hour, "storefront")

	token, _, err := previous.Issue(testIdentity("u-1", "a@b.com", auth.RoleUser))
	require.NoError(t, err)

	_, err = current.Validate(token)
	require.Error(t, err)

	validator := auth.NewMultiTokenValidator(current, previous)
	claims, err := validator.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
}

func TestMultiTokenValidator_NoValidators(t *testing.T) {
	_, err := auth.NewMultiTokenValidator().Validate("token")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidSignature))
}
