package activitymap_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := identity.ActivityEvent{
		EventType: identity.ActivityEventVerifySuccess,
		UserID:    "user-100",
		Email:     "alice@example.com",
		Metadata: map[string]any{
			"request_id": "req-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(identity.ActivityEventVerifySuccess) {
		t.Fatalf("expected verb %q, got %q", identity.ActivityEventVerifySuccess, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["request_id"] != "req-204" {
		t.Fatalf("expected metadata request_id req-204, got %#v", out.Metadata["request_id"])
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "alice@example.com" {
		t.Fatalf("expected metadata email alice@example.com, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := identity.ActivityEvent{
		EventType: identity.ActivityEventRegisterMailError,
		UserID:    "user-200",
		Email:     "bob@example.com",
		Metadata: map[string]any{
			"mail_id":                    "mail-1",
			activitymap.MetadataKeyEmail: "existing@example.com",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("audit"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e identity.ActivityEvent) string {
			if v, ok := e.Metadata["mail_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "audit" {
		t.Fatalf("expected channel audit, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "mail-1" {
		t.Fatalf("expected object_id mail-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "existing@example.com" {
		t.Fatalf("expected existing email key preserved, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  identity.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  identity.ActivityEvent{UserID: "user-1"},
			expect: "user-1",
		},
		{
			name:   "uses default fallback when user id missing",
			event:  identity.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when user id missing",
			event:  identity.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}
