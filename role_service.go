package auth

import (
	"context"
	"strings"
)

// RoleToggler flips identities between the user and premium tiers
type RoleToggler interface {
	TogglePremium(ctx context.Context, actor AuthClaims, uid string) (*User, error)
	GetUser(ctx context.Context, uid string) (*User, error)
}

// RoleServiceOption customizes role service construction.
type RoleServiceOption func(*RoleService)

// WithRoleServiceActivitySink sets the ActivitySink used to publish role changes.
func WithRoleServiceActivitySink(sink ActivitySink) RoleServiceOption {
	return func(rs *RoleService) {
		rs.activitySink = normalizeActivitySink(sink)
	}
}

// WithRoleServiceLogger overrides the logger used for sink failures.
func WithRoleServiceLogger(logger Logger) RoleServiceOption {
	return func(rs *RoleService) {
		if logger != nil {
			rs.logger = logger
		}
	}
}

// RoleService manages identity roles
type RoleService struct {
	store        Users
	logger       Logger
	activitySink ActivitySink
}

// NewRoleService returns a role service on top of store
func NewRoleService(store Users, opts ...RoleServiceOption) *RoleService {
	rs := &RoleService{
		store:        store,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rs)
		}
	}
	return rs
}

// GetUser loads an identity by id
func (rs *RoleService) GetUser(ctx context.Context, uid string) (*User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ValidationError(ErrValidation, map[string]any{"uid": "cannot be blank"})
	}

	user, err := rs.store.GetByID(ctx, uid)
	if err != nil {
		return nil, AsRichError(err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// TogglePremium moves premium to user and user to premium. Admins keep
// their role and the call fails with ErrAdminRoleLocked.
func (rs *RoleService) TogglePremium(ctx context.Context, actor AuthClaims, uid string) (*User, error) {
	actorRef := ActorRef{Type: "anonymous"}
	if actor != nil {
		actorRef = ActorRef{ID: actor.UserID(), Type: actor.Role()}
	}

	updated, from, err := rs.toggle(ctx, uid)
	if err != nil {
		recordActivity(ctx, rs.activitySink, rs.logger, ActivityEvent{
			EventType: ActivityEventRoleChangeFailure,
			Actor:     actorRef,
			UserID:    uid,
			FromRole:  from,
			Metadata:  failureMetadata(err, nil),
		})
		return nil, err
	}

	recordActivity(ctx, rs.activitySink, rs.logger, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     actorRef,
		UserID:    updated.ID,
		FromRole:  from,
		ToRole:    updated.Role,
	})

	return updated, nil
}

func (rs *RoleService) toggle(ctx context.Context, uid string) (*User, Role, error) {
	user, err := rs.GetUser(ctx, uid)
	if err != nil {
		return nil, "", err
	}

	target, err := NextPremiumRole(user.Role)
	if err != nil {
		return nil, user.Role, err
	}

	updated, err := rs.store.UpdateRole(ctx, user.ID, target)
	if err != nil {
		return nil, user.Role, AsRichError(err)
	}

	rs.logger.Info("user role changed", "user_id", updated.ID, "from", user.Role, "to", updated.Role)
	return updated, user.Role, nil
}

// NextPremiumRole returns the role the premium toggle moves current to
func NextPremiumRole(current Role) (Role, error) {
	switch current {
	case RolePremium:
		return RoleUser, nil
	case RoleAdmin:
		return current, ErrAdminRoleLocked
	default:
		return RolePremium, nil
	}
}

var _ RoleToggler = (*RoleService)(nil)
