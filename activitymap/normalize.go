// Package activitymap flattens identity activity events into a record shape
// that log pipelines and audit stores can ingest without knowing the
// identity types.
package activitymap

import (
	"context"
	"strings"
	"time"

	identity "github.com/nas-health/go-identity"
)

const (
	MetadataKeyActorType = "actor_type"
	MetadataKeyFromState = "from_state"
	MetadataKeyToState   = "to_state"
)

const (
	defaultChannel = "identity"
	systemActorID  = "system"
)

// Record is the flattened form of an identity.ActivityEvent.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes mapping.
type Option func(*options)

type options struct {
	channel string
	now     func() time.Time
}

// WithChannel overrides the channel stamped on records.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithClock sets the time used when an event carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Map converts event into a Record. The event metadata is copied, never
// shared.
func Map(event identity.ActivityEvent, opts ...Option) Record {
	o := options{
		channel: defaultChannel,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), event.Subject.ID, systemActorID),
		Verb:       string(event.EventType),
		ObjectType: string(event.Subject.Kind),
		ObjectID:   event.Subject.ID,
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink returns an ActivitySink that maps every event and hands it to emit.
func Sink(emit func(Record), opts ...Option) identity.ActivitySink {
	return identity.ActivitySinkFunc(func(_ context.Context, event identity.ActivityEvent) error {
		emit(Map(event, opts...))
		return nil
	})
}

func metadata(event identity.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
	}
	if event.FromState != "" {
		out[MetadataKeyFromState] = string(event.FromState)
	}
	if event.ToState != "" {
		out[MetadataKeyToState] = string(event.ToState)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
