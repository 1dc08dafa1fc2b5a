package activitymap_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/nas-health/go-identity"
	"github.com/nas-health/go-identity/activitymap"
)

func TestMapRegistrationTransition(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := identity.ActivityEvent{
		EventType: identity.ActivityEventRegistrationTransition,
		Actor:     identity.ActorRef{ID: "NU00001", Type: "end_user"},
		Subject:   identity.OwnerRef{Kind: identity.KindEndUser, ID: "NU00001"},
		FromState: identity.StateProvisional,
		ToState:   identity.StateActive,
		Metadata: map[string]any{
			"event": identity.EventCompleteProfile,
		},
		OccurredAt: ts,
	}

	out := activitymap.Map(event)

	if out.ActorID != "NU00001" {
		t.Fatalf("expected actor_id NU00001, got %q", out.ActorID)
	}
	if out.Verb != string(identity.ActivityEventRegistrationTransition) {
		t.Fatalf("expected verb %q, got %q", identity.ActivityEventRegistrationTransition, out.Verb)
	}
	if out.ObjectType != string(identity.KindEndUser) {
		t.Fatalf("expected object_type end_user, got %q", out.ObjectType)
	}
	if out.Channel != "identity" {
		t.Fatalf("expected channel identity, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyFromState] != string(identity.StateProvisional) {
		t.Fatalf("expected from_state PROVISIONAL, got %#v", out.Metadata[activitymap.MetadataKeyFromState])
	}
	if out.Metadata[activitymap.MetadataKeyToState] != string(identity.StateActive) {
		t.Fatalf("expected to_state ACTIVE, got %#v", out.Metadata[activitymap.MetadataKeyToState])
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "end_user" {
		t.Fatalf("expected actor_type end_user, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestMapSystemEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Map(identity.ActivityEvent{
		EventType: identity.ActivityEventStaleAccountsPurged,
	}, activitymap.WithChannel("maintenance"), activitymap.WithClock(func() time.Time { return now }))

	if out.ActorID != "system" {
		t.Fatalf("expected system actor, got %q", out.ActorID)
	}
	if out.ObjectID != "" || out.ObjectType != "" {
		t.Fatalf("expected no object, got %q/%q", out.ObjectType, out.ObjectID)
	}
	if out.Channel != "maintenance" {
		t.Fatalf("expected channel maintenance, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v, got %v", now, out.OccurredAt)
	}
	if out.Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", out.Metadata)
	}
}

func TestMapKeepsExistingActorType(t *testing.T) {
	t.Parallel()

	out := activitymap.Map(identity.ActivityEvent{
		EventType: identity.ActivityEventLoginFailure,
		Actor:     identity.ActorRef{Type: "system"},
		Metadata:  map[string]any{activitymap.MetadataKeyActorType: "existing"},
	})

	if out.Metadata[activitymap.MetadataKeyActorType] != "existing" {
		t.Fatalf("expected actor_type to be preserved, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
}

func TestSink(t *testing.T) {
	t.Parallel()

	var got []activitymap.Record
	sink := activitymap.Sink(func(r activitymap.Record) { got = append(got, r) })

	err := sink.Record(context.Background(), identity.ActivityEvent{
		EventType: identity.ActivityEventLoginSuccess,
		Subject:   identity.OwnerRef{Kind: identity.KindAdmin, ID: "NA00001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ObjectID != "NA00001" || got[0].ActorID != "NA00001" {
		t.Fatalf("unexpected records: %+v", got)
	}
}
