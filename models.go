package auth

import (
	"net/mail"
	"strings"
	"time"
)

// Credential is how an identity proves who it is. It is either a
// LocalCredential or a ProviderCredential, never both.
type Credential interface {
	isCredential()
	// Method names the variant, "local" or the provider name
	Method() string
}

// LocalCredential holds the bcrypt hash of a locally managed password
type LocalCredential struct {
	Hash string
}

func (LocalCredential) isCredential() {}

func (LocalCredential) Method() string { return "local" }

// ProviderCredential links an identity to an external identity provider
type ProviderCredential struct {
	Provider       string
	ProviderUserID string
}

func (ProviderCredential) isCredential() {}

func (c ProviderCredential) Method() string { return c.Provider }

// User is a registered or provider-linked account
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        Role       `json:"role"`
	Credential  Credential `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
	Role() Role
}

// NormalizeEmail trims and lower-cases an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordHash returns the local hash, false for provider-linked users
func (u *User) PasswordHash() (string, bool) {
	if u == nil {
		return "", false
	}
	local, ok := u.Credential.(LocalCredential)
	if !ok || local.Hash == "" {
		return "", false
	}
	return local.Hash, true
}

// ProviderLink returns the provider linkage, false for local users
func (u *User) ProviderLink() (ProviderCredential, bool) {
	if u == nil {
		return ProviderCredential{}, false
	}
	link, ok := u.Credential.(ProviderCredential)
	return link, ok
}

// Validate checks the identity invariants before it is persisted
func (u *User) Validate() error {
	if u == nil {
		return ErrValidation
	}

	fields := map[string]any{}

	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email != NormalizeEmail(u.Email) {
		fields["email"] = "must be a normalized email address"
	}

	if !u.Role.IsValid() {
		fields["role"] = "must be one of user, premium, admin"
	}

	switch c := u.Credential.(type) {
	case LocalCredential:
		if c.Hash == "" {
			fields["credential"] = "local credential requires a password hash"
		}
	case ProviderCredential:
		if c.Provider == "" || c.ProviderUserID == "" {
			fields["credential"] = "provider credential requires provider and provider user id"
		}
	default:
		fields["credential"] = "identity requires a credential"
	}

	if len(fields) > 0 {
		return ValidationError(ErrValidation, fields)
	}
	return nil
}

// Summary is what clients get to see of an identity
func (u *User) Summary() PublicUser {
	if u == nil {
		return PublicUser{}
	}

	summary := PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
	if u.Credential != nil {
		summary.AuthMethod = u.Credential.Method()
	}
	return summary
}

// PublicUser is the identity summary returned by the session API
type PublicUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        Role      `json:"role"`
	AuthMethod  string    `json:"auth_method,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// NewIdentityFromUser adapts a user into an Identity
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return userIdentity{user: user}
}

type userIdentity struct {
	user *User
}

func (a userIdentity) ID() string          { return a.user.ID }
func (a userIdentity) Email() string       { return a.user.Email }
func (a userIdentity) DisplayName() string { return a.user.DisplayName }
func (a userIdentity) Role() Role          { return a.user.Role }

var _ Identity = userIdentity{}
