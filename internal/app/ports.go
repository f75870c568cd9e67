package app

import (
	"context"
	"time"

	"prepcuet/internal/domain"
)

// AttemptStore persists attempt records (in-memory, Redis, Postgres).
type AttemptStore interface {
	// CreateAttempt counts the records already stored for (rec.UserID, rec.TestID)
	// and inserts rec with AttemptNumber = count+1 in one atomic step. It returns
	// domain.ErrQuotaExceeded without writing when count >= maxAttempts.
	CreateAttempt(ctx context.Context, rec domain.AttemptRecord, maxAttempts int) (domain.AttemptRecord, error)
	GetAttempt(ctx context.Context, id string) (domain.AttemptRecord, error)
	// ListAttempts returns a user's attempts on a test ordered by attempt number.
	ListAttempts(ctx context.Context, userID, testID string) ([]domain.AttemptRecord, error)
	// ListPending returns every pending record regardless of due time.
	ListPending(ctx context.Context) ([]domain.AttemptRecord, error)
	// MarkAvailable moves a pending record to available and stamps emailSentAt.
	// It returns domain.ErrNotPending if the record was already released.
	MarkAvailable(ctx context.Context, id string, sentAt time.Time) error
}

// UserDirectory lists the registered users a broadcast goes to.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// TestCatalog resolves published test series.
type TestCatalog interface {
	GetTest(ctx context.Context, testID string) (domain.TestSeries, error)
}

// Notifier sends the workflow's emails. Implementations report success as a
// bool and never return errors to the caller.
type Notifier interface {
	SubmissionConfirmed(ctx context.Context, p domain.NotificationPayload) bool
	ResultReady(ctx context.Context, p domain.NotificationPayload) bool
	NewTestBroadcast(ctx context.Context, p domain.NotificationPayload) bool
}

// Outbox holds notifications waiting for another delivery attempt.
type Outbox interface {
	Enqueue(ctx context.Context, job domain.NotificationJob) error
	// Due claims and removes up to limit jobs whose NextRetryAt <= now.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.NotificationJob, error)
}

func deliver(ctx context.Context, n Notifier, job domain.NotificationJob) bool {
	switch job.Kind {
	case domain.NotifySubmissionConfirmed:
		return n.SubmissionConfirmed(ctx, job.Payload)
	case domain.NotifyResultReady:
		return n.ResultReady(ctx, job.Payload)
	case domain.NotifyNewTestBroadcast:
		return n.NewTestBroadcast(ctx, job.Payload)
	default:
		return false
	}
}
