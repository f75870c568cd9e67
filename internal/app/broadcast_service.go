package app

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"prepcuet/internal/domain"
)

// BroadcastService emails every registered user about a newly published test.
type BroadcastService struct {
	users       UserDirectory
	notifier    Notifier
	concurrency int
}

func NewBroadcastService(users UserDirectory, notifier Notifier, concurrency int) *BroadcastService {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &BroadcastService{users: users, notifier: notifier, concurrency: concurrency}
}

// Broadcast sends the new-test email to each user. Users without an email are
// counted as failures without a send attempt.
func (s *BroadcastService) Broadcast(ctx context.Context, b domain.Broadcast) (domain.BroadcastReport, error) {
	b.TestID = strings.TrimSpace(b.TestID)
	b.TestTitle = strings.TrimSpace(b.TestTitle)
	if b.TestID == "" || b.TestTitle == "" {
		return domain.BroadcastReport{}, domain.ErrMissingBroadcastFields
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return domain.BroadcastReport{}, err
	}
	if len(users) == 0 {
		return domain.BroadcastReport{Message: "No users found to notify"}, nil
	}

	var success, failed atomic.Int64
	workCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, u := range users {
		u := u
		g.Go(func() error {
			email := strings.TrimSpace(u.Email)
			if email == "" {
				failed.Add(1)
				return nil
			}
			ok := s.notifier.NewTestBroadcast(workCtx, domain.NotificationPayload{
				Name:        u.Name,
				Email:       email,
				TestTitle:   b.TestTitle,
				TestID:      b.TestID,
				Description: b.TestDescription,
			})
			if ok {
				success.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := domain.BroadcastReport{
		SuccessCount: int(success.Load()),
		FailCount:    int(failed.Load()),
		Total:        len(users),
	}
	report.Message = "Notifications sent"
	log.Info().
		Str("testId", b.TestID).
		Int("success", report.SuccessCount).
		Int("failed", report.FailCount).
		Int("total", report.Total).
		Msg("test broadcast finished")
	return report, nil
}
