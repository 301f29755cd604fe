package auth

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the body of every failed session API call
type ErrorResponse struct {
	Status  string         `json:"status"`
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// SuccessResponse wraps a successful payload
type SuccessResponse struct {
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
}

// LoginResponse is the body of a successful password login
type LoginResponse struct {
	Status    string     `json:"status"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Payload   PublicUser `json:"payload"`
}

// CurrentResponse is the body of the current session lookup
type CurrentResponse struct {
	User PublicUser `json:"user"`
}

// Success builds a success body
func Success(payload any) SuccessResponse {
	return SuccessResponse{Status: "success", Payload: payload}
}

// NewErrorResponse maps an error to its response body
func NewErrorResponse(err error) ErrorResponse {
	richErr := AsRichError(err)
	res := ErrorResponse{
		Status:  "error",
		Error:   richErr.TextCode,
		Message: richErr.Message,
	}
	if richErr.Category == errors.CategoryValidation && len(richErr.Metadata) > 0 {
		res.Fields = richErr.Metadata
	}
	return res
}

// WriteError answers with the status and body the taxonomy assigns to err
func WriteError(ctx router.Context, err error) error {
	return ctx.JSON(HTTPStatus(err), NewErrorResponse(err))
}

// DefaultCookieName names the session cookie when none is configured
const DefaultCookieName = "auth"

// SessionCookies writes and clears the session cookie
type SessionCookies struct {
	Name     string
	MaxAge   time.Duration
	Secure   bool
	SameSite string
	Path     string
	now      func() time.Time
}

// NewSessionCookies returns a cookie writer for an httpOnly session cookie
func NewSessionCookies(name string, maxAge time.Duration, secure bool) *SessionCookies {
	if name == "" {
		name = DefaultCookieName
	}
	if maxAge <= 0 {
		maxAge = DefaultTokenTTL
	}
	return &SessionCookies{
		Name:     name,
		MaxAge:   maxAge,
		Secure:   secure,
		SameSite: "Lax",
		Path:     "/",
		now:      time.Now,
	}
}

// Set stores the token, the cookie lives as long as the token
func (s *SessionCookies) Set(c router.Context, token string, expiresAt time.Time) {
	now := s.now()
	maxAge := s.MaxAge
	expires := now.Add(maxAge)

	if !expiresAt.IsZero() {
		// token expiry has second precision, round up so a fresh token
		// keeps the full max age
		if remaining := ceilSecond(expiresAt.Sub(now)); remaining > 0 && remaining < maxAge {
			maxAge = remaining
		}
		if expiresAt.Before(expires) {
			expires = expiresAt
		}
	}

	c.Cookie(&router.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     s.Path,
		MaxAge:   int(maxAge / time.Second),
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func ceilSecond(d time.Duration) time.Duration {
	if rem := d % time.Second; rem > 0 {
		d += time.Second - rem
	}
	return d
}

// Clear expires the session cookie on the client
func (s *SessionCookies) Clear(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     s.Path,
		MaxAge:   -1,
		Expires:  s.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func logRequestError(logger Logger, route string, err error) {
	richErr := AsRichError(err)
	if HTTPStatus(richErr) >= 500 {
		logger.Error("request failed",
			"route", route,
			"error", richErr.Error(),
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return
	}
	logger.Debug("request rejected", "route", route, "message", richErr.Message, "code", richErr.TextCode)
}
