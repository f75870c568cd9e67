package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"prepcuet/internal/domain"
)

// SubmissionService records finished test attempts and serves them back once released.
type SubmissionService struct {
	attempts AttemptStore
	catalog  TestCatalog
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

func NewSubmissionService(attempts AttemptStore, catalog TestCatalog, notifier Notifier) *SubmissionService {
	return &SubmissionService{
		attempts: attempts,
		catalog:  catalog,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock swaps the time source; tests use it for deterministic due times.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit persists a new pending attempt and sends a best-effort confirmation.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionReceipt, error) {
	sub.UserID = strings.TrimSpace(sub.UserID)
	sub.TestID = strings.TrimSpace(sub.TestID)
	if sub.UserID == "" || sub.TestID == "" {
		return domain.SubmissionReceipt{}, domain.ErrMissingIdentifiers
	}

	title := sub.TestTitle
	if title == "" && s.catalog != nil {
		if test, err := s.catalog.GetTest(ctx, sub.TestID); err == nil {
			title = test.Title
		} else {
			log.Debug().Err(err).Str("testId", sub.TestID).Msg("test title lookup failed")
		}
	}

	submittedAt := s.now()
	rec := domain.AttemptRecord{
		ID:                s.newID(),
		UserID:            sub.UserID,
		TestID:            sub.TestID,
		UserEmail:         strings.TrimSpace(sub.UserEmail),
		UserName:          sub.UserName,
		TestTitle:         title,
		Answers:           sub.Answers,
		Score:             sub.Score,
		Correct:           sub.Correct,
		Incorrect:         sub.Incorrect,
		Skipped:           sub.Skipped,
		TimeSpent:         sub.TimeSpent,
		TabSwitches:       sub.TabSwitches,
		SubmittedAt:       submittedAt,
		ResultAvailableAt: submittedAt.Add(domain.ResultReleaseDelay),
		Status:            domain.StatusPending,
	}
	if rec.Answers == nil {
		rec.Answers = []domain.AnswerEntry{}
	}

	saved, err := s.attempts.CreateAttempt(ctx, rec, domain.MaxAttempts)
	if err != nil {
		return domain.SubmissionReceipt{}, err
	}

	if saved.UserEmail != "" && s.notifier != nil {
		ok := s.notifier.SubmissionConfirmed(ctx, domain.NotificationPayload{
			Name:      saved.UserName,
			Email:     saved.UserEmail,
			TestTitle: saved.TestTitle,
			TestID:    saved.TestID,
			ResultID:  saved.ID,
		})
		if !ok {
			log.Warn().
				Str("event", "submission_confirmation_failed").
				Str("resultId", saved.ID).
				Str("userId", saved.UserID).
				Msg("confirmation email not sent")
		}
	}

	log.Info().
		Str("resultId", saved.ID).
		Str("userId", saved.UserID).
		Str("testId", saved.TestID).
		Int("attempt", saved.AttemptNumber).
		Time("resultAvailableAt", saved.ResultAvailableAt).
		Msg("attempt submitted")

	return domain.SubmissionReceipt{
		ResultID:          saved.ID,
		ResultAvailableAt: saved.ResultAvailableAt,
		AttemptNumber:     saved.AttemptNumber,
	}, nil
}

// Result returns a released attempt to its owner.
func (s *SubmissionService) Result(ctx context.Context, resultID, userID string) (domain.AttemptRecord, error) {
	rec, err := s.attempts.GetAttempt(ctx, resultID)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	// Someone else's attempt looks the same as a missing one.
	if userID == "" || rec.UserID != userID {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if rec.Status != domain.StatusAvailable {
		return domain.AttemptRecord{}, &domain.NotReadyError{AvailableAt: rec.ResultAvailableAt}
	}
	return rec, nil
}

// History lists a user's attempts on a test and how many remain.
func (s *SubmissionService) History(ctx context.Context, userID, testID string) (domain.AttemptHistory, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(testID) == "" {
		return domain.AttemptHistory{}, domain.ErrMissingIdentifiers
	}
	attempts, err := s.attempts.ListAttempts(ctx, userID, testID)
	if err != nil {
		return domain.AttemptHistory{}, err
	}
	remaining := domain.MaxAttempts - len(attempts)
	if remaining < 0 {
		remaining = 0
	}
	return domain.AttemptHistory{
		UserID:    userID,
		TestID:    testID,
		Attempts:  attempts,
		Remaining: remaining,
	}, nil
}
