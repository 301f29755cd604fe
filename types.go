package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger takes a message followed by key/value pairs, the way slog and
// glog loggers do
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Users is the persistence contract the session flow depends on.
// Missing records surface as ErrNotFound, duplicate emails as ErrEmailTaken.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByProvider(ctx context.Context, provider, providerUserID string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
}

// CredentialVerifier proves identities from credentials
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*User, error)
	VerifyProvider(ctx context.Context, profile ProviderProfile) (*User, bool, error)
}

// TokenIssuer mints and validates session tokens
type TokenIssuer interface {
	TokenValidator
	Issue(identity Identity) (string, time.Time, error)
	TTL() time.Duration
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetCookieName() string
	GetCookieSecure() bool
	GetContextKey() string
	GetTokenLookup() string
	GetRoutePrefix() string
	GetSuccessRedirect() string
	GetFailureRedirect() string
}

// ProviderProfile is what an external identity provider tells us about a person
type ProviderProfile struct {
	Provider       string
	ProviderUserID string
	Username       string
	Email          string
	DisplayName    string
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLine("ERR", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLine("WRN", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLine("INF", msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLine("DBG", msg, args))
}

// formatLine renders "[LVL] AUTH msg key=value ...". A trailing key without
// a value is printed under !BADKEY, like slog does.
func formatLine(level, msg string, args []any) string {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " !BADKEY=%v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
