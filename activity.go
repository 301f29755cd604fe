package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-print"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister           ActivityEventType = "auth.register"
	ActivityEventRegisterFailure    ActivityEventType = "auth.register.failure"
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin        ActivityEventType = "auth.social.login"
	ActivityEventSocialLoginFailure ActivityEventType = "auth.social.login.failure"
	ActivityEventLogout             ActivityEventType = "auth.logout"
	ActivityEventSessionCurrent     ActivityEventType = "auth.session.current"
	ActivityEventAccessDenied       ActivityEventType = "auth.access.denied"
	ActivityEventRoleChanged        ActivityEventType = "user.role.changed"
	ActivityEventRoleChangeFailure  ActivityEventType = "user.role.change.failure"
	ActivityEventUserLookup         ActivityEventType = "user.lookup"
	ActivityEventUserLookupFailure  ActivityEventType = "user.lookup.failure"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromRole   Role
	ToRole     Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ErrorCode returns the taxonomy text code stored for failures, if any
func (e ActivityEvent) ErrorCode() string {
	if e.Metadata == nil {
		return ""
	}
	code, _ := e.Metadata["error_code"].(string)
	return code
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink. All sinks get the
// event even when one fails, the first error is returned.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewLoggingActivitySink writes every event to the logger
func NewLoggingActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		if event.ErrorCode() != "" {
			logger.Warn("activity",
				"event", event.EventType,
				"user_id", event.UserID,
				"actor_id", event.Actor.ID,
				"metadata", print.MaybePrettyJSON(event.Metadata),
			)
			return nil
		}
		logger.Info("activity", "event", event.EventType, "user_id", event.UserID, "actor_id", event.Actor.ID)
		return nil
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity stamps and records an event. Sink errors are logged and
// never fail the caller.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Error("failed to record activity", "event", event.EventType, "error", err)
	}
}

// failureMetadata builds event metadata for a failed operation
func failureMetadata(err error, extra map[string]any) map[string]any {
	meta := map[string]any{}
	for k, v := range extra {
		meta[k] = v
	}
	if rich := AsRichError(err); rich != nil {
		meta["error_code"] = rich.TextCode
		meta["error"] = rich.Message
	}
	return meta
}
