package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/notify"
)

func receive(t *testing.T, sub *notify.Subscription) notify.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return notify.Message{}
	}
}

func TestHubFanOut(t *testing.T) {
	hub := notify.NewHub()
	defer hub.Close()

	a := hub.Subscribe("user:1")
	b := hub.Subscribe("user:1")
	other := hub.Subscribe("user:2")

	n := hub.Publish(context.Background(), "user:1", notify.Message{Type: "ping"})
	assert.Equal(t, 2, n)

	assert.Equal(t, "ping", receive(t, a).Type)
	msg := receive(t, b)
	assert.Equal(t, "user:1", msg.Topic)
	assert.False(t, msg.SentAt.IsZero())

	select {
	case <-other.C():
		t.Fatal("message leaked to another topic")
	default:
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := notify.NewHub(notify.WithBuffer(1))
	defer hub.Close()

	sub := hub.Subscribe(notify.BroadcastTopic)

	assert.Equal(t, 1, hub.Publish(context.Background(), notify.BroadcastTopic, notify.Message{Type: "first"}))
	assert.Equal(t, 0, hub.Publish(context.Background(), notify.BroadcastTopic, notify.Message{Type: "second"}))

	assert.Equal(t, "first", receive(t, sub).Type)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := notify.NewHub()
	defer hub.Close()

	sub := hub.Subscribe("user:1")
	assert.Equal(t, 1, hub.Subscribers("user:1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("user:1"))

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Publish(context.Background(), "user:1", notify.Message{}))
}

func TestHubClose(t *testing.T) {
	hub := notify.NewHub()
	sub := hub.Subscribe("user:1")

	hub.Close()
	hub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Close()

	late := hub.Subscribe("user:1")
	_, ok = <-late.C()
	assert.False(t, ok, "subscriptions on a closed hub are closed")

	assert.Equal(t, 0, hub.Publish(context.Background(), "user:1", notify.Message{}))
}

func TestHubPublishCancelled(t *testing.T) {
	hub := notify.NewHub()
	defer hub.Close()
	hub.Subscribe("user:1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, hub.Publish(ctx, "user:1", notify.Message{}))
}

func TestActivitySink(t *testing.T) {
	hub := notify.NewHub()
	defer hub.Close()
	sink := notify.NewActivitySink(hub)
	sub := hub.Subscribe(notify.UserTopic("user-1"))

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventRoleChanged,
		Actor:     auth.ActorRef{ID: "admin-1", Type: "user"},
		UserID:    "user-1",
		FromRole:  auth.RoleUser,
		ToRole:    auth.RolePremium,
	}))

	msg := receive(t, sub)
	assert.Equal(t, notify.TypeRoleChanged, msg.Type)
	assert.Equal(t, notify.RoleChange{UserID: "user-1", From: auth.RoleUser, To: auth.RolePremium, ActorID: "admin-1"}, msg.Payload)

	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventSocialLogin,
		UserID:    "user-1",
		Metadata:  map[string]any{"method": "github"},
	}))
	msg = receive(t, sub)
	assert.Equal(t, notify.TypeLogin, msg.Type)
	assert.Equal(t, notify.Login{UserID: "user-1", Method: "github"}, msg.Payload)

	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginFailure, UserID: "user-1"}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventRoleChanged}))
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message %+v", msg)
	default:
	}
}
