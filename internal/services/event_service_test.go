package services

import (
	"context"
	"testing"

	"github.com/biometriscan/gateway/internal/models"
)

func TestEventsStoredAndPublished(t *testing.T) {
	ctx := context.Background()
	svc := NewEventService(newTestDB(t))

	var published []models.Event
	svc.SetPublisher(func(e models.Event) { published = append(published, e) })

	subject := "user@example.com"
	if err := svc.CreateEvent(ctx, models.EventSignInFail, "warn", "first", &subject); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreateEvent(ctx, models.EventUpstreamDown, "error", "second", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	events, err := svc.GetRecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Message != "second" || events[1].Message != "first" {
		t.Fatalf("expected newest first, got %q then %q", events[0].Message, events[1].Message)
	}
	if events[1].Subject == nil || *events[1].Subject != subject || events[0].Subject != nil {
		t.Fatalf("unexpected subjects")
	}
	if len(published) != 2 || published[0].CreatedAt.IsZero() {
		t.Fatalf("expected both events published with timestamps, got %+v", published)
	}

	limited, _ := svc.GetRecentEvents(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
