package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// GitHubNoReplyDomain is used to build an address for GitHub accounts that
// keep their email private
const GitHubNoReplyDomain = "users.noreply.github.com"

// UserProvider proves identities against the users store
type UserProvider struct {
	store  Users
	hasher PasswordAuthenticator
	logger Logger
	now    func() time.Time
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users) *UserProvider {
	return &UserProvider{
		store:  store,
		hasher: defaultHasher,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithPasswordHasher overrides the default bcrypt hasher
func (u *UserProvider) WithPasswordHasher(h PasswordAuthenticator) *UserProvider {
	if h != nil {
		u.hasher = h
	}
	return u
}

// Verify checks an email and password pair. It never writes.
func (u *UserProvider) Verify(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	fields := map[string]any{}
	if email == "" {
		fields["email"] = "cannot be blank"
	}
	if password == "" {
		fields["password"] = "cannot be blank"
	}
	if len(fields) > 0 {
		return nil, ValidationError(ErrValidation, fields)
	}

	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) || errors.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		return nil, ErrNotFound
	}

	hash, ok := user.PasswordHash()
	if !ok {
		u.logger.Debug("password login attempted for provider account", "user_id", user.ID)
		return nil, ErrWrongAuthMethod
	}

	if err := u.hasher.ComparePasswordAndHash(password, hash); err != nil {
		if HasTextCode(err, TextCodeInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to compare password hash")
	}

	return user, nil
}

// VerifyProvider finds the identity linked to the provider account or
// creates it on first login. The boolean reports whether it was created.
// Accounts are never merged: an email owned by another identity fails with
// ErrEmailTaken.
func (u *UserProvider) VerifyProvider(ctx context.Context, profile ProviderProfile) (*User, bool, error) {
	profile.Provider = strings.ToLower(strings.TrimSpace(profile.Provider))
	profile.ProviderUserID = strings.TrimSpace(profile.ProviderUserID)

	if profile.Provider == "" || profile.ProviderUserID == "" {
		return nil, false, ValidationError(ErrValidation, map[string]any{
			"provider": "provider and provider user id are required",
		})
	}

	existing, err := u.store.GetByProvider(ctx, profile.Provider, profile.ProviderUserID)
	if err == nil && existing != nil {
		return existing, false, nil
	}
	if err != nil && !HasTextCode(err, TextCodeNotFound) && !errors.IsNotFound(err) {
		return nil, false, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve linked user")
	}

	email, err := ProfileEmail(profile)
	if err != nil {
		return nil, false, err
	}

	displayName := strings.TrimSpace(profile.DisplayName)
	if displayName == "" {
		displayName = profile.Username
	}

	now := u.now()
	user := &User{
		Email:       email,
		DisplayName: displayName,
		Role:        RoleUser,
		Credential: ProviderCredential{
			Provider:       profile.Provider,
			ProviderUserID: profile.ProviderUserID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, false, err
	}

	created, err := u.store.Create(ctx, user)
	if err != nil {
		if HasTextCode(err, TextCodeProviderLinked) {
			// a concurrent callback linked the account first
			linked, lerr := u.store.GetByProvider(ctx, profile.Provider, profile.ProviderUserID)
			if lerr != nil {
				return nil, false, errors.Wrap(lerr, errors.CategoryInternal, "failed to retrieve linked user")
			}
			return linked, false, nil
		}
		if HasTextCode(err, TextCodeEmailTaken) {
			u.logger.Warn("provider login rejected, email belongs to another account",
				"provider", profile.Provider,
				"provider_user_id", profile.ProviderUserID,
			)
			return nil, false, ErrEmailTaken
		}
		return nil, false, errors.Wrap(err, errors.CategoryInternal, "failed to create linked user")
	}

	u.logger.Info("created user from provider login", "user_id", created.ID, "provider", profile.Provider)
	return created, true, nil
}

// ProfileEmail resolves the email to store for a provider profile
func ProfileEmail(profile ProviderProfile) (string, error) {
	if email := NormalizeEmail(profile.Email); email != "" {
		return email, nil
	}

	if strings.EqualFold(profile.Provider, "github") && profile.Username != "" {
		return NormalizeEmail(fmt.Sprintf("%s@%s", profile.Username, GitHubNoReplyDomain)), nil
	}

	return "", ValidationError(ErrValidation, map[string]any{
		"email": fmt.Sprintf("%s did not share an email address", profile.Provider),
	})
}

var _ CredentialVerifier = (*UserProvider)(nil)
