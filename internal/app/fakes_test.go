package app_test

import (
	"context"
	"sync"
	"time"

	"prepcuet/internal/domain"
)

// recordingNotifier counts sends per kind and fails for listed addresses.
type recordingNotifier struct {
	mu       sync.Mutex
	failFor  map[string]bool
	sent     map[domain.NotificationKind][]domain.NotificationPayload
	attempts map[domain.NotificationKind]int
}

func newRecordingNotifier(failFor ...string) *recordingNotifier {
	n := &recordingNotifier{
		failFor:  make(map[string]bool),
		sent:     make(map[domain.NotificationKind][]domain.NotificationPayload),
		attempts: make(map[domain.NotificationKind]int),
	}
	for _, email := range failFor {
		n.failFor[email] = true
	}
	return n
}

func (n *recordingNotifier) record(kind domain.NotificationKind, p domain.NotificationPayload) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts[kind]++
	if n.failFor[p.Email] {
		return false
	}
	n.sent[kind] = append(n.sent[kind], p)
	return true
}

func (n *recordingNotifier) heal(email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failFor, email)
}

func (n *recordingNotifier) SubmissionConfirmed(_ context.Context, p domain.NotificationPayload) bool {
	return n.record(domain.NotifySubmissionConfirmed, p)
}

func (n *recordingNotifier) ResultReady(_ context.Context, p domain.NotificationPayload) bool {
	return n.record(domain.NotifyResultReady, p)
}

func (n *recordingNotifier) NewTestBroadcast(_ context.Context, p domain.NotificationPayload) bool {
	return n.record(domain.NotifyNewTestBroadcast, p)
}

func (n *recordingNotifier) sentCount(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[kind])
}

func (n *recordingNotifier) attemptCount(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts[kind]
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
