package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prepcuet/internal/app"
	"prepcuet/internal/domain"
	"prepcuet/internal/infra/memory"
)

func TestSubmitSequenceHitsQuota(t *testing.T) {
	ctx := context.Background()
	service, store, _, _ := newTestSubmissionService()

	for want := 1; want <= 3; want++ {
		receipt, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1"})
		if err != nil {
			t.Fatalf("submit %d: %v", want, err)
		}
		if receipt.AttemptNumber != want {
			t.Fatalf("expected attempt %d, got %d", want, receipt.AttemptNumber)
		}
	}

	_, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	attempts, _ := store.ListAttempts(ctx, "u1", "t1")
	if len(attempts) != 3 {
		t.Fatalf("quota rejection wrote a record: %d stored", len(attempts))
	}
}

func TestSubmitStampsReleaseTimeAndStatus(t *testing.T) {
	ctx := context.Background()
	service, store, notifier, clock := newTestSubmissionService()

	receipt, err := service.Submit(ctx, domain.Submission{
		UserID:      "u1",
		TestID:      "t1",
		UserEmail:   "asha@example.com",
		UserName:    "Asha",
		Score:       42,
		Correct:     11,
		Incorrect:   3,
		Skipped:     1,
		TimeSpent:   1800,
		TabSwitches: 2,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := receipt.ResultAvailableAt.Sub(clock.Now()); got != 600*time.Second {
		t.Fatalf("expected release exactly 10 minutes out, got %s", got)
	}

	rec, err := store.GetAttempt(ctx, receipt.ResultID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.StatusPending || rec.EmailSentAt != nil {
		t.Fatalf("expected fresh pending record, got %+v", rec)
	}
	if rec.Score != 42 || rec.TabSwitches != 2 || rec.TimeSpent != 1800 {
		t.Fatalf("payload not stored as-is: %+v", rec)
	}
	if rec.TestTitle != "CUET Mock 1" {
		t.Fatalf("expected title from catalog, got %q", rec.TestTitle)
	}
	if notifier.sentCount(domain.NotifySubmissionConfirmed) != 1 {
		t.Fatalf("expected a confirmation email")
	}
}

func TestSubmitRejectsMissingIdentifiers(t *testing.T) {
	ctx := context.Background()
	service, store, notifier, _ := newTestSubmissionService()

	for _, sub := range []domain.Submission{
		{TestID: "t1"},
		{UserID: "u1"},
		{UserID: "  ", TestID: "t1", UserEmail: "asha@example.com"},
	} {
		if _, err := service.Submit(ctx, sub); !errors.Is(err, domain.ErrMissingIdentifiers) {
			t.Fatalf("expected missing identifiers for %+v, got %v", sub, err)
		}
	}
	pending, _ := store.ListPending(ctx)
	if len(pending) != 0 || notifier.attemptCount(domain.NotifySubmissionConfirmed) != 0 {
		t.Fatalf("validation failure had side effects")
	}
}

func TestSubmitSucceedsWhenConfirmationFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAttemptStore()
	notifier := newRecordingNotifier("down@example.com")
	service := app.NewSubmissionService(store, nil, notifier)

	receipt, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1", UserEmail: "down@example.com"})
	if err != nil {
		t.Fatalf("expected success despite mail failure, got %v", err)
	}
	if receipt.ResultID == "" || receipt.AttemptNumber != 1 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if notifier.attemptCount(domain.NotifySubmissionConfirmed) != 1 {
		t.Fatalf("expected one confirmation attempt")
	}
}

func TestConcurrentSubmissionsRespectQuota(t *testing.T) {
	ctx := context.Background()
	service, store, _, _ := newTestSubmissionService()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = map[int]bool{}
		quotaed int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1"})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, domain.ErrQuotaExceeded) {
				quotaed++
				return
			}
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			if seen[receipt.AttemptNumber] {
				t.Errorf("attempt number %d issued twice", receipt.AttemptNumber)
			}
			seen[receipt.AttemptNumber] = true
		}()
	}
	wg.Wait()

	if len(seen) != 3 || !seen[1] || !seen[2] || !seen[3] || quotaed != 9 {
		t.Fatalf("expected attempts {1,2,3} and 9 rejections, got %v and %d", seen, quotaed)
	}
	attempts, _ := store.ListAttempts(ctx, "u1", "t1")
	if len(attempts) != domain.MaxAttempts {
		t.Fatalf("expected %d stored attempts, got %d", domain.MaxAttempts, len(attempts))
	}
}

func TestResultVisibleOnlyAfterRelease(t *testing.T) {
	ctx := context.Background()
	service, store, _, clock := newTestSubmissionService()

	receipt, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = service.Result(ctx, receipt.ResultID, "u1")
	var notReady *domain.NotReadyError
	if !errors.As(err, &notReady) || !notReady.AvailableAt.Equal(receipt.ResultAvailableAt) {
		t.Fatalf("expected not-ready error with release time, got %v", err)
	}
	if !errors.Is(err, domain.ErrResultNotReady) {
		t.Fatalf("expected ErrResultNotReady match")
	}
	if _, err := service.Result(ctx, receipt.ResultID, "someone-else"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected other users to get not found, got %v", err)
	}

	if err := store.MarkAvailable(ctx, receipt.ResultID, clock.Now()); err != nil {
		t.Fatalf("release: %v", err)
	}
	rec, err := service.Result(ctx, receipt.ResultID, "u1")
	if err != nil || rec.Status != domain.StatusAvailable {
		t.Fatalf("expected released result, got %+v %v", rec, err)
	}
}

func TestHistoryReportsRemainingAttempts(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestSubmissionService()
	for i := 0; i < 2; i++ {
		if _, err := service.Submit(ctx, domain.Submission{UserID: "u1", TestID: "t1"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	history, err := service.History(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Attempts) != 2 || history.Remaining != 1 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func newTestSubmissionService() (*app.SubmissionService, *memory.AttemptStore, *recordingNotifier, *fakeClock) {
	store := memory.NewAttemptStore()
	catalog := memory.NewTestCatalog(memory.NewStaticTestLoader(map[string]domain.TestSeries{
		"t1": {ID: "t1", Title: "CUET Mock 1"},
	}), 5*time.Minute)
	notifier := newRecordingNotifier()
	clock := newFakeClock()
	service := app.NewSubmissionService(store, catalog, notifier).WithClock(clock.Now)
	return service, store, notifier, clock
}
