package identity

import "context"

// ActivityAuditNotifier turns session boundaries into activity events.
type ActivityAuditNotifier struct {
	Sink ActivitySink
	Now  Clock
}

var _ AuditNotifier = ActivityAuditNotifier{}

func (a ActivityAuditNotifier) SessionStarted(ctx context.Context, ref OwnerRef) error {
	return a.emit(ctx, ActivityEventSessionStarted, ref)
}

func (a ActivityAuditNotifier) SessionEnded(ctx context.Context, ref OwnerRef) error {
	return a.emit(ctx, ActivityEventSessionEnded, ref)
}

func (a ActivityAuditNotifier) emit(ctx context.Context, eventType ActivityEventType, ref OwnerRef) error {
	return normalizeActivitySink(a.Sink).Record(ctx, ActivityEvent{
		EventType:  eventType,
		Actor:      subjectActor(ref),
		Subject:    ref,
		OccurredAt: normalizeClock(a.Now)(),
	})
}

type noopAuditNotifier struct{}

func (noopAuditNotifier) SessionStarted(context.Context, OwnerRef) error { return nil }
func (noopAuditNotifier) SessionEnded(context.Context, OwnerRef) error   { return nil }

func normalizeAuditNotifier(a AuditNotifier) AuditNotifier {
	if a == nil {
		return noopAuditNotifier{}
	}
	return a
}
