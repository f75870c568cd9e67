package memory

import (
	"context"
	"testing"
	"time"

	"prepcuet/internal/domain"
)

func TestOutboxDueRespectsRetryTimeAndLimit(t *testing.T) {
	outbox := NewOutbox()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	_ = outbox.Enqueue(ctx, domain.NotificationJob{ID: "late", NextRetryAt: now.Add(time.Minute)})
	_ = outbox.Enqueue(ctx, domain.NotificationJob{ID: "a", NextRetryAt: now.Add(-2 * time.Minute)})
	_ = outbox.Enqueue(ctx, domain.NotificationJob{ID: "b", NextRetryAt: now.Add(-time.Minute)})

	due, err := outbox.Due(ctx, now, 1)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "a" {
		t.Fatalf("expected oldest due job first, got %+v", due)
	}
	due, _ = outbox.Due(ctx, now, 10)
	if len(due) != 1 || due[0].ID != "b" {
		t.Fatalf("expected b, got %+v", due)
	}
	if outbox.Len() != 1 {
		t.Fatalf("expected late job to stay queued, got %d", outbox.Len())
	}
}
