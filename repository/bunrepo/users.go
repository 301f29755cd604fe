package bunrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	auth "github.com/goliatone/go-storefront-auth"
)

// UserRecord is the row layout of the users table. The credential union is
// flattened into password_hash or the provider pair, never both.
type UserRecord struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             string    `bun:"id,pk"`
	Email          string    `bun:"email,notnull,unique"`
	DisplayName    string    `bun:"display_name"`
	Role           string    `bun:"role,notnull"`
	PasswordHash   string    `bun:"password_hash,nullzero"`
	Provider       string    `bun:"provider,nullzero"`
	ProviderUserID string    `bun:"provider_user_id,nullzero"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func newUserRecord(u *auth.User) *UserRecord {
	record := &UserRecord{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}

	switch c := u.Credential.(type) {
	case auth.LocalCredential:
		record.PasswordHash = c.Hash
	case auth.ProviderCredential:
		record.Provider = c.Provider
		record.ProviderUserID = c.ProviderUserID
	}

	return record
}

// ToUser maps the row back into the domain identity
func (r *UserRecord) ToUser() *auth.User {
	user := &auth.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        auth.Role(r.Role),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.Provider != "" {
		user.Credential = auth.ProviderCredential{
			Provider:       r.Provider,
			ProviderUserID: r.ProviderUserID,
		}
	} else if r.PasswordHash != "" {
		user.Credential = auth.LocalCredential{Hash: r.PasswordHash}
	}

	return user
}

// Users is the bun backed implementation of auth.Users
type Users struct {
	db  bun.IDB
	now func() time.Time
}

var _ auth.Users = (*Users)(nil)

// NewUsers returns a users store on top of db
func NewUsers(db bun.IDB) *Users {
	return &Users{
		db:  db,
		now: time.Now,
	}
}

// Migrate creates the users table and its indexes when missing
func (u *Users) Migrate(ctx context.Context) error {
	_, err := u.db.NewCreateTable().
		Model((*UserRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users table")
	}

	_, err = u.db.NewCreateIndex().
		Model((*UserRecord)(nil)).
		Index("users_provider_link_idx").
		Unique().
		IfNotExists().
		Column("provider", "provider_user_id").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create provider link index")
	}

	return nil
}

func (u *Users) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return u.getBy(ctx, "id", strings.TrimSpace(id))
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.getBy(ctx, "email", auth.NormalizeEmail(email))
}

func (u *Users) GetByProvider(ctx context.Context, provider, providerUserID string) (*auth.User, error) {
	record := &UserRecord{}
	err := u.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.provider_user_id = ?", providerUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, u.lookupError(err, map[string]any{
			"provider":         provider,
			"provider_user_id": providerUserID,
		})
	}
	return record.ToUser(), nil
}

// Create inserts a new identity. Ids are random UUIDs unless the caller
// already assigned one.
func (u *Users) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	if user == nil {
		return nil, auth.ErrValidation
	}

	user.Email = auth.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	record := newUserRecord(user)
	if _, err := u.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err, "email") {
			return nil, auth.ErrEmailTaken.Clone().WithMetadata(map[string]any{"email": user.Email})
		}
		if isUniqueViolation(err, "provider") {
			return nil, auth.ErrProviderLinked.Clone().WithMetadata(map[string]any{"provider": record.Provider})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return record.ToUser(), nil
}

// UpdateRole changes the role in a single statement keyed by id
func (u *Users) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	if !role.IsValid() {
		return nil, auth.ValidationError(auth.ErrValidation, map[string]any{"role": "must be one of user, premium, admin"})
	}

	res, err := u.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("role = ?", string(role)).
		Set("updated_at = ?", u.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update user role")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, auth.ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}

	return u.GetByID(ctx, id)
}

func (u *Users) getBy(ctx context.Context, column, value string) (*auth.User, error) {
	if value == "" {
		return nil, auth.ErrNotFound
	}

	record := &UserRecord{}
	err := u.db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, u.lookupError(err, map[string]any{column: value})
	}

	return record.ToUser(), nil
}

func (u *Users) lookupError(err error, meta map[string]any) error {
	if repository.IsRecordNotFound(err) || stderrors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound.Clone().WithMetadata(meta)
	}
	return errors.Wrap(err, errors.CategoryInternal, "failed to load user").WithMetadata(meta)
}

func isUniqueViolation(err error, column string) bool {
	var pgErr pgdriver.Error
	if stderrors.As(err, &pgErr) {
		return pgErr.IntegrityViolation() && strings.Contains(pgErr.Field('n'), column)
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "users."+column)
}
