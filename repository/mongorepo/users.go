package mongorepo

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	auth "github.com/goliatone/go-storefront-auth"
)

// DefaultCollection holds one document per identity
const DefaultCollection = "users"

// IsMongoURL reports whether the database url should be served by this store
func IsMongoURL(url string) bool {
	return strings.HasPrefix(url, "mongodb://") || strings.HasPrefix(url, "mongodb+srv://")
}

// UserDocument is the stored shape of an identity
type UserDocument struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	DisplayName    string    `bson:"displayName,omitempty"`
	Role           string    `bson:"role"`
	PasswordHash   string    `bson:"password,omitempty"`
	Provider       string    `bson:"provider,omitempty"`
	ProviderUserID string    `bson:"providerUserId,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// NewUserDocument flattens the identity credential into the document
func NewUserDocument(u *auth.User) UserDocument {
	doc := UserDocument{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}

	switch c := u.Credential.(type) {
	case auth.LocalCredential:
		doc.PasswordHash = c.Hash
	case auth.ProviderCredential:
		doc.Provider = c.Provider
		doc.ProviderUserID = c.ProviderUserID
	}

	return doc
}

// ToUser maps the document back into the domain identity
func (d UserDocument) ToUser() *auth.User {
	user := &auth.User{
		ID:          d.ID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Role:        auth.Role(d.Role),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}

	if d.Provider != "" {
		user.Credential = auth.ProviderCredential{Provider: d.Provider, ProviderUserID: d.ProviderUserID}
	} else if d.PasswordHash != "" {
		user.Credential = auth.LocalCredential{Hash: d.PasswordHash}
	}

	return user
}

// Users is the MongoDB implementation of auth.Users
type Users struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ auth.Users = (*Users)(nil)

// NewUsers wraps an existing collection
func NewUsers(coll *mongo.Collection) *Users {
	return &Users{
		coll: coll,
		now:  time.Now,
	}
}

// Connect dials the server, checks it answers and returns the client
func Connect(ctx context.Context, url string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create mongo client")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to reach mongo")
	}

	return client, nil
}

// Migrate creates the unique indexes on email and on the provider link
func (u *Users) Migrate(ctx context.Context) error {
	_, err := u.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_unique"),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "providerUserId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("users_provider_link_unique").
				SetPartialFilterExpression(bson.M{"provider": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create user indexes")
	}
	return nil
}

func (u *Users) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return u.findOne(ctx, bson.M{"_id": strings.TrimSpace(id)})
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.findOne(ctx, bson.M{"email": auth.NormalizeEmail(email)})
}

func (u *Users) GetByProvider(ctx context.Context, provider, providerUserID string) (*auth.User, error) {
	return u.findOne(ctx, bson.M{"provider": provider, "providerUserId": providerUserID})
}

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
		user.ID = bson.NewObjectID().Hex()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	doc := NewUserDocument(user)
	if _, err := u.coll.InsertOne(ctx, doc); err != nil {
		if IsDuplicateEmail(err) {
			return nil, auth.ErrEmailTaken.Clone().WithMetadata(map[string]any{"email": user.Email})
		}
		if IsDuplicateProviderLink(err) {
			return nil, auth.ErrProviderLinked.Clone().WithMetadata(map[string]any{"provider": doc.Provider})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return doc.ToUser(), nil
}

// UpdateRole is a single findOneAndUpdate, concurrent writers race and the
// last one wins
func (u *Users) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	if !role.IsValid() {
		return nil, auth.ValidationError(auth.ErrValidation, map[string]any{"role": "must be one of user, premium, admin"})
	}

	var doc UserDocument
	err := u.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": string(role), "updatedAt": u.now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, lookupError(err, map[string]any{"id": id})
	}

	return doc.ToUser(), nil
}

func (u *Users) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	var doc UserDocument
	if err := u.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, lookupError(err, map[string]any(filter))
	}
	return doc.ToUser(), nil
}

// IsDuplicateEmail reports a unique index violation on the email index
func IsDuplicateEmail(err error) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email")
}

// IsDuplicateProviderLink reports a unique index violation on the provider link
func IsDuplicateProviderLink(err error) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "users_provider_link_unique")
}

func lookupError(err error, meta map[string]any) error {
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return auth.ErrNotFound.Clone().WithMetadata(meta)
	}
	return errors.Wrap(err, errors.CategoryInternal, "failed to load user").WithMetadata(meta)
}
