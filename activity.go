package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistrationTransition ActivityEventType = "registration.transition"
	ActivityEventEmailChangeRequested   ActivityEventType = "email_change.requested"
	ActivityEventEmailChanged           ActivityEventType = "email_change.verified"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess   ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChanged        ActivityEventType = "auth.password.changed"
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventSessionStarted         ActivityEventType = "auth.session.started"
	ActivityEventSessionEnded           ActivityEventType = "auth.session.ended"
	ActivityEventStaleAccountsPurged    ActivityEventType = "maintenance.stale_purged"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType ActivityEventType
	Actor     ActorRef
	Subject   OwnerRef
	// FromState and ToState are set for registration transitions.
	FromState  RegistrationState
	ToState    RegistrationState
	Metadata   map[string]any
	OccurredAt time.Time
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

// activityRecorder stamps and forwards events, logging sink failures.
type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    Clock
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = normalizeClock(r.now)()
	}

	sink := normalizeActivitySink(r.sink)
	if err := sink.Record(ctx, event); err != nil && r.logger != nil {
		r.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}

func subjectActor(ref OwnerRef) ActorRef {
	return ActorRef{ID: ref.ID, Type: string(ref.Kind)}
}
