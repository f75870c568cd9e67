package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"prepcuet/internal/domain"
)

// ScannerConfig tunes the release scanner.
type ScannerConfig struct {
	// Concurrency caps in-flight record releases per run.
	Concurrency int
	// Retry enables the notification outbox.
	Retry bool
	// MaxDeliveries counts the inline send plus outbox retries.
	MaxDeliveries int
	// OutboxBatch caps how many outbox jobs a run retries.
	OutboxBatch int
}

// ReleaseScanner promotes due attempts from pending to available and notifies owners.
type ReleaseScanner struct {
	attempts AttemptStore
	notifier Notifier
	outbox   Outbox
	hub      *ReleaseHub
	cfg      ScannerConfig
	now      func() time.Time
}

func NewReleaseScanner(attempts AttemptStore, notifier Notifier, outbox Outbox, hub *ReleaseHub, cfg ScannerConfig) *ReleaseScanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 3
	}
	if cfg.OutboxBatch <= 0 {
		cfg.OutboxBatch = 100
	}
	return &ReleaseScanner{
		attempts: attempts,
		notifier: notifier,
		outbox:   outbox,
		hub:      hub,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock swaps the time source.
func (s *ReleaseScanner) WithClock(now func() time.Time) *ReleaseScanner {
	s.now = now
	return s
}

type scanTally struct {
	mu         sync.Mutex
	processed  int
	emailsSent int
	errs       []string
}

func (t *scanTally) fail(id string, err error) {
	t.mu.Lock()
	t.errs = append(t.errs, fmt.Sprintf("%s: %v", id, err))
	t.mu.Unlock()
}

// Run performs one scan. A failed pending query is the only error it returns;
// per-record failures are reported in ScanReport.Errors.
func (s *ReleaseScanner) Run(ctx context.Context) (domain.ScanReport, error) {
	now := s.now()
	report := domain.ScanReport{}

	pending, err := s.attempts.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending attempts: %w", err)
	}
	report.OutboxDelivered = s.drainOutbox(ctx, now)

	due := make([]domain.AttemptRecord, 0, len(pending))
	for _, rec := range pending {
		if rec.ResultAvailableAt.IsZero() {
			continue
		}
		if rec.Due(now) {
			due = append(due, rec)
		}
	}
	if len(due) == 0 {
		report.Message = "No results due for release"
		return report, nil
	}

	// in-flight releases finish even if the caller goes away
	workCtx := context.WithoutCancel(ctx)
	tally := &scanTally{}
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, rec := range due {
		rec := rec
		g.Go(func() error {
			s.release(workCtx, rec, now, tally)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(tally.errs)
	report.Processed = tally.processed
	report.EmailsSent = tally.emailsSent
	report.Errors = tally.errs

	log.Info().
		Int("due", len(due)).
		Int("processed", report.Processed).
		Int("emailsSent", report.EmailsSent).
		Int("errors", len(report.Errors)).
		Msg("release scan finished")
	return report, nil
}

func (s *ReleaseScanner) release(ctx context.Context, rec domain.AttemptRecord, now time.Time, tally *scanTally) {
	if err := s.attempts.MarkAvailable(ctx, rec.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotPending) {
			return
		}
		log.Error().Err(err).Str("resultId", rec.ID).Msg("release transition failed")
		tally.fail(rec.ID, err)
		return
	}

	tally.mu.Lock()
	tally.processed++
	tally.mu.Unlock()

	if s.hub != nil {
		s.hub.Publish(domain.ResultRelease{
			ResultID:   rec.ID,
			UserID:     rec.UserID,
			TestID:     rec.TestID,
			TestTitle:  rec.TestTitle,
			ReleasedAt: now,
		})
	}

	if rec.UserEmail == "" || s.notifier == nil {
		return
	}
	payload := domain.NotificationPayload{
		Name:      rec.UserName,
		Email:     rec.UserEmail,
		TestTitle: rec.TestTitle,
		TestID:    rec.TestID,
		ResultID:  rec.ID,
	}
	if s.notifier.ResultReady(ctx, payload) {
		tally.mu.Lock()
		tally.emailsSent++
		tally.mu.Unlock()
		return
	}

	// The record is already available, so the next scan will not pick it up again.
	log.Error().
		Str("event", "notification_lost_after_release").
		Str("resultId", rec.ID).
		Str("userId", rec.UserID).
		Msg("result-ready email failed after release")
	s.enqueueRetry(ctx, domain.NotificationJob{
		ID:           uuid.NewString(),
		Kind:         domain.NotifyResultReady,
		Payload:      payload,
		AttemptCount: 1,
		MaxAttempts:  s.cfg.MaxDeliveries,
		LastError:    "result-ready notification failed",
		CreatedAt:    now,
		NextRetryAt:  now.Add(retryBackoff(1)),
	})
}

func (s *ReleaseScanner) enqueueRetry(ctx context.Context, job domain.NotificationJob) {
	if !s.cfg.Retry || s.outbox == nil {
		return
	}
	if job.Exhausted() {
		log.Error().
			Str("event", "notification_dead_letter").
			Str("jobId", job.ID).
			Str("kind", string(job.Kind)).
			Str("email", job.Payload.Email).
			Int("attempts", job.AttemptCount).
			Msg("notification dropped after final attempt")
		return
	}
	if err := s.outbox.Enqueue(ctx, job); err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("enqueue notification retry")
	}
}

func (s *ReleaseScanner) drainOutbox(ctx context.Context, now time.Time) int {
	if !s.cfg.Retry || s.outbox == nil {
		return 0
	}
	// Due may hand back the jobs it claimed before failing; they are no longer
	// queued, so they still get a delivery attempt here.
	jobs, err := s.outbox.Due(ctx, now, s.cfg.OutboxBatch)
	if err != nil {
		log.Error().Err(err).Int("claimed", len(jobs)).Msg("read notification outbox")
	}
	delivered := 0
	for _, job := range jobs {
		if deliver(ctx, s.notifier, job) {
			delivered++
			continue
		}
		job.AttemptCount++
		job.LastError = "redelivery failed"
		job.NextRetryAt = now.Add(retryBackoff(job.AttemptCount))
		s.enqueueRetry(ctx, job)
	}
	if len(jobs) > 0 {
		log.Info().Int("jobs", len(jobs)).Int("delivered", delivered).Msg("notification outbox drained")
	}
	return delivered
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * time.Minute
}

// RunEvery scans on a fixed interval until ctx is done.
func (s *ReleaseScanner) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled release scan failed")
			}
		}
	}
}

// ScanAuthorizer guards on-demand scans with an optional shared secret.
type ScanAuthorizer struct {
	secret string
}

func NewScanAuthorizer(secret string) ScanAuthorizer {
	return ScanAuthorizer{secret: secret}
}

// Open reports whether scans are accepted without a secret.
func (a ScanAuthorizer) Open() bool {
	return a.secret == ""
}

// Authorize checks an Authorization header value against "Bearer <secret>".
func (a ScanAuthorizer) Authorize(header string) error {
	if a.Open() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+a.secret)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
