package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeWrongAuthMethod    = "WRONG_AUTH_METHOD"
	TextCodeMissingToken       = "MISSING_TOKEN"
	TextCodeInvalidSignature   = "INVALID_SIGNATURE"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeAdminRoleLocked    = "ADMIN_ROLE_LOCKED"
	TextCodeProviderLinked     = "PROVIDER_LINKED"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// ErrNotFound is returned when no identity matches the lookup.
// The session API answers 400 for it, same as any other lookup failure.
var ErrNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is returned when the password does not match
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeBadRequest)

// ErrWrongAuthMethod is returned on password login for a provider-linked identity
var ErrWrongAuthMethod = errors.New("account uses an external provider to sign in", errors.CategoryAuth).
	WithTextCode(TextCodeWrongAuthMethod).
	WithCode(errors.CodeBadRequest)

// ErrMissingToken is returned when a request carries no session token
var ErrMissingToken = errors.New("missing session token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned for tokens that fail verification
var ErrInvalidSignature = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrExpired is returned for tokens past their expiry
var ErrExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the role is not allowed on a route
var ErrForbidden = errors.New("insufficient role for this action", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrValidation is returned for malformed input
var ErrValidation = errors.New("invalid input", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

// ErrEmailTaken is returned when the email already belongs to an identity
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeBadRequest)

// ErrAdminRoleLocked is returned when the premium toggle targets an admin
var ErrAdminRoleLocked = errors.New("admin role cannot be toggled", errors.CategoryBadInput).
	WithTextCode(TextCodeAdminRoleLocked).
	WithCode(errors.CodeBadRequest)

// ErrProviderLinked is returned by stores when the provider account is
// already linked to an identity
var ErrProviderLinked = errors.New("provider account already linked", errors.CategoryConflict).
	WithTextCode(TextCodeProviderLinked).
	WithCode(errors.CodeConflict)

// ValidationError wraps a validation failure keeping the taxonomy text code
func ValidationError(err error, fields map[string]any) *errors.Error {
	wrapped := errors.Wrap(err, errors.CategoryValidation, ErrValidation.Message).
		WithTextCode(TextCodeValidation).
		WithCode(errors.CodeBadRequest)
	if len(fields) > 0 {
		wrapped = wrapped.WithMetadata(fields)
	}
	return wrapped
}

// AsRichError normalizes any error into a go-errors value. Errors outside the
// taxonomy become internal errors.
func AsRichError(err error) *errors.Error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}

	return errors.Wrap(err, errors.CategoryInternal, "unexpected server error").
		WithTextCode(TextCodeInternal).
		WithCode(errors.CodeInternal)
}

// HTTPStatus returns the status code the HTTP edge answers with
func HTTPStatus(err error) int {
	richErr := AsRichError(err)
	if richErr == nil {
		return http.StatusOK
	}
	if richErr.Code == 0 {
		return errors.CodeInternal
	}
	return richErr.Code
}

// HasTextCode reports whether err carries the given taxonomy text code
func HasTextCode(err error, textCode string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsTokenError reports whether err is one of the session token failures
func IsTokenError(err error) bool {
	return HasTextCode(err, TextCodeMissingToken) ||
		HasTextCode(err, TextCodeInvalidSignature) ||
		HasTextCode(err, TextCodeTokenExpired)
}

// wrapAs wraps a low level error under a taxonomy sentinel
func wrapAs(err error, sentinel *errors.Error) *errors.Error {
	return errors.Wrap(err, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code)
}
