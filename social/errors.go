package social

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeProviderNotFound  = "PROVIDER_NOT_FOUND"
	TextCodeInvalidState      = "INVALID_STATE"
	TextCodeStateExpired      = "STATE_EXPIRED"
	TextCodeAccessDenied      = "PROVIDER_ACCESS_DENIED"
	TextCodeTokenExchangeFail = "TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail      = "USER_INFO_FAILED"
)

var ErrProviderNotFound = errors.New("sign in provider not configured", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned for a callback whose state was not minted here
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrAccessDenied is returned when the user cancels on the consent page
var ErrAccessDenied = errors.New("sign in cancelled at the provider", errors.CategoryAuth).
	WithTextCode(TextCodeAccessDenied).
	WithCode(errors.CodeUnauthorized)

var ErrTokenExchangeFailed = errors.New("provider token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

var ErrUserInfoFailed = errors.New("provider profile lookup failed", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ProviderError is a failed call to an identity provider
type ProviderError struct {
	Provider string
	// Op is the call that failed: exchange, user_info or emails
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	parts := []string{strings.TrimSpace(e.Provider + " " + e.Op)}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	switch {
	case e.Message != "":
		parts = append(parts, e.Message)
	case e.Err != nil:
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// providerFailure clones base with what the provider reported in err
func providerFailure(base *errors.Error, provider string, err error) error {
	meta := map[string]any{"provider": provider}

	var perr *ProviderError
	if stderrors.As(err, &perr) {
		meta["operation"] = perr.Op
		if perr.Status != 0 {
			meta["status"] = perr.Status
		}
		if perr.Code != "" {
			meta["code"] = perr.Code
		}
		if perr.Message != "" {
			meta["description"] = perr.Message
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	out := base.Clone()
	out.Source = err
	return out.WithMetadata(meta)
}
