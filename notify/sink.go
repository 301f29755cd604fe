package notify

import (
	"context"

	auth "github.com/goliatone/go-storefront-auth"
)

// Message types published by the activity sink
const (
	TypeRoleChanged = "role.changed"
	TypeLogin       = "login"
)

// RoleChange is the payload of a role.changed message
type RoleChange struct {
	UserID  string    `json:"user_id"`
	From    auth.Role `json:"from"`
	To      auth.Role `json:"to"`
	ActorID string    `json:"actor_id,omitempty"`
}

// Login is the payload of a login message
type Login struct {
	UserID string `json:"user_id"`
	Method string `json:"method"`
}

// ActivitySink publishes the events a signed in user cares about to the
// user's topic. Everything else is ignored.
type ActivitySink struct {
	hub *Hub
}

var _ auth.ActivitySink = (*ActivitySink)(nil)

func NewActivitySink(hub *Hub) *ActivitySink {
	return &ActivitySink{hub: hub}
}

func (s *ActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if event.UserID == "" {
		return nil
	}

	topic := UserTopic(event.UserID)

	switch event.EventType {
	case auth.ActivityEventRoleChanged:
		s.hub.Publish(ctx, topic, Message{
			Type: TypeRoleChanged,
			Payload: RoleChange{
				UserID:  event.UserID,
				From:    event.FromRole,
				To:      event.ToRole,
				ActorID: event.Actor.ID,
			},
			SentAt: event.OccurredAt,
		})
	case auth.ActivityEventLoginSuccess, auth.ActivityEventSocialLogin:
		method, _ := event.Metadata["method"].(string)
		if method == "" {
			method = "local"
		}
		s.hub.Publish(ctx, topic, Message{
			Type:    TypeLogin,
			Payload: Login{UserID: event.UserID, Method: method},
			SentAt:  event.OccurredAt,
		})
	}

	return nil
}
