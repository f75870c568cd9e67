package domain

import "time"

// NotificationKind names the email template a job renders.
type NotificationKind string

const (
	NotifySubmissionConfirmed NotificationKind = "submission-confirmed"
	NotifyResultReady         NotificationKind = "result-ready"
	NotifyNewTestBroadcast    NotificationKind = "new-test-broadcast"
)

// NotificationPayload is the union of template fields across kinds.
type NotificationPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	TestTitle   string `json:"testTitle"`
	TestID      string `json:"testId"`
	ResultID    string `json:"resultId,omitempty"`
	Description string `json:"description,omitempty"`
}

// NotificationJob is an outbox entry for an email that failed after its
// triggering state change was already committed.
type NotificationJob struct {
	ID           string              `json:"id"`
	Kind         NotificationKind    `json:"kind"`
	Payload      NotificationPayload `json:"payload"`
	AttemptCount int                 `json:"attemptCount"`
	MaxAttempts  int                 `json:"maxAttempts"`
	LastError    string              `json:"lastError,omitempty"`
	CreatedAt    time.Time           `json:"-"`
	NextRetryAt  time.Time           `json:"-"`
}

// Exhausted reports whether the job used up its delivery attempts.
func (j NotificationJob) Exhausted() bool {
	return j.AttemptCount >= j.MaxAttempts
}
