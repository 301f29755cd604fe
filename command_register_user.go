package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	DisplayName string `json:"display_name" form:"display_name"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the registration payload
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		// bcrypt only looks at the first 72 bytes
		validation.Field(&e.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&e.DisplayName, validation.Length(0, 100)),
	)
}

// Registrar creates local identities
type Registrar struct {
	store        Users
	hasher       PasswordAuthenticator
	useHashid    bool
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewRegistrar returns a registrar writing to store
func NewRegistrar(store Users) *Registrar {
	return &Registrar{
		store:        store,
		hasher:       defaultHasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (h *Registrar) WithLogger(l Logger) *Registrar {
	h.logger = normalizeLogger(l)
	return h
}

func (h *Registrar) WithPasswordHasher(hasher PasswordAuthenticator) *Registrar {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *Registrar) WithActivitySink(sink ActivitySink) *Registrar {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

// WithHashid derives user ids from the email instead of letting the store
// assign them
func (h *Registrar) WithHashid(enabled bool) *Registrar {
	h.useHashid = enabled
	return h
}

// Register validates the message and stores a new user-role identity
func (h *Registrar) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
	}

	msg.Email = NormalizeEmail(msg.Email)
	msg.DisplayName = strings.TrimSpace(msg.DisplayName)

	user, err := h.register(ctx, msg)
	if err != nil {
		recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
			EventType: ActivityEventRegisterFailure,
			Actor:     ActorRef{Type: "anonymous"},
			Metadata:  failureMetadata(err, map[string]any{"email": msg.Email}),
		})
		return nil, err
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventRegister,
		Actor:     ActorRef{ID: user.ID, Type: "user"},
		UserID:    user.ID,
		ToRole:    user.Role,
	})

	return user, nil
}

func (h *Registrar) register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, ValidationError(err, validationFields(err))
	}

	hash, err := h.hasher.HashPassword(msg.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode != "" {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := h.now()
	user := &User{
		Email:       msg.Email,
		DisplayName: getDisplayName(msg.DisplayName, msg.Email),
		Role:        RoleUser,
		Credential:  LocalCredential{Hash: hash},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if h.useHashid {
		if id, err := hashid.NewUUID(msg.Email); err == nil {
			user.ID = id.String()
		} else {
			h.logger.Warn("hashid failed for registration, store assigns id", "error", err)
		}
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	created, err := h.store.Create(ctx, user)
	if err != nil {
		if HasTextCode(err, TextCodeEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, AsRichError(err)
	}

	return created, nil
}

func validationFields(err error) map[string]any {
	fields := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
		return fields
	}
	fields["payload"] = err.Error()
	return fields
}

func getDisplayName(displayName, email string) string {
	if displayName != "" {
		return displayName
	}

	if strings.Contains(email, "@") {
		displayName = strings.Split(email, "@")[0]
	}

	return displayName
}
