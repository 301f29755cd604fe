package bunrepo_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/repository/bunrepo"
)

func newStore(t *testing.T) *bunrepo.Users {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := bunrepo.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := bunrepo.NewUsers(db)
	require.NoError(t, store.Migrate(context.Background()))
	// second run is a no-op
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func localUser(email string) *auth.User {
	return &auth.User{
		Email:       email,
		DisplayName: "Local",
		Role:        auth.RoleUser,
		Credential:  auth.LocalCredential{Hash: "$2a$10$hash"},
	}
}

func githubUser(email, id string) *auth.User {
	return &auth.User{
		Email:       email,
		DisplayName: "octocat",
		Role:        auth.RoleUser,
		Credential:  auth.ProviderCredential{Provider: "github", ProviderUserID: id},
	}
}

func TestUsers_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	created, err := store.Create(ctx, localUser(" A@B.com "))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "a@b.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := store.GetByEmail(ctx, "A@b.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	hash, ok := byEmail.PasswordHash()
	assert.True(t, ok)
	assert.Equal(t, "$2a$10$hash", hash)

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)
	assert.Equal(t, auth.RoleUser, byID.Role)
}

func TestUsers_ProviderCredentialRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	created, err := store.Create(ctx, githubUser("octo@github.com", "583231"))
	require.NoError(t, err)

	found, err := store.GetByProvider(ctx, "github", "583231")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, ok := found.PasswordHash()
	assert.False(t, ok)

	link, ok := found.ProviderLink()
	require.True(t, ok)
	assert.Equal(t, auth.ProviderCredential{Provider: "github", ProviderUserID: "583231"}, link)

	_, err = store.GetByProvider(ctx, "github", "other")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound))
}

func TestUsers_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Create(ctx, localUser("a@b.com"))
	require.NoError(t, err)

	_, err = store.Create(ctx, localUser("a@b.com"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodeEmailTaken), "got %v", err)

	_, err = store.Create(ctx, githubUser("a@b.com", "1"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodeEmailTaken), "provider accounts never share an email")
}

func TestUsers_DuplicateProviderLink(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Create(ctx, githubUser("a@b.com", "583231"))
	require.NoError(t, err)

	_, err = store.Create(ctx, githubUser("other@b.com", "583231"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProviderLinked), "got %v", err)
}

func TestUsers_CreateRejectsInvalid(t *testing.T) {
	store := newStore(t)

	_, err := store.Create(context.Background(), &auth.User{Email: "a@b.com", Role: auth.RoleUser})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeValidation))

	_, err = store.Create(context.Background(), nil)
	assert.Error(t, err)
}

func TestUsers_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.GetByID(ctx, "missing")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound))

	_, err = store.GetByEmail(ctx, "nobody@b.com")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound))

	_, err = store.GetByEmail(ctx, "  ")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound))

	_, err = store.UpdateRole(ctx, "missing", auth.RolePremium)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound))
}

func TestUsers_UpdateRole(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	created, err := store.Create(ctx, localUser("a@b.com"))
	require.NoError(t, err)

	updated, err := store.UpdateRole(ctx, created.ID, auth.RolePremium)
	require.NoError(t, err)
	assert.Equal(t, auth.RolePremium, updated.Role)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = store.UpdateRole(ctx, created.ID, auth.Role("owner"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodeValidation))

	reloaded, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RolePremium, reloaded.Role)
}

func TestUsers_ConcurrentRoleUpdatesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	created, err := store.Create(ctx, localUser("a@b.com"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		role := auth.RoleUser
		if i%2 == 0 {
			role = auth.RolePremium
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateRole(ctx, created.ID, role)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, []auth.Role{auth.RoleUser, auth.RolePremium}, final.Role)
}

func TestUsers_CancelledContext(t *testing.T) {
	store := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, localUser("a@b.com"))
	require.Error(t, err)

	_, err = store.GetByEmail(context.Background(), "a@b.com")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNotFound), "cancelled insert leaves nothing behind")
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, bunrepo.IsPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, bunrepo.IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, bunrepo.IsPostgresDSN("file:auth.db"))
	assert.False(t, bunrepo.IsPostgresDSN(bunrepo.MemoryDSN))

	_, err := bunrepo.Open(" ")
	assert.Error(t, err)
}
