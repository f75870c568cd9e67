package domain

import "time"

const (
	// MaxAttempts bounds how many times a user may submit the same test.
	MaxAttempts = 3
	// ResultReleaseDelay is the fixed gap between submission and result visibility.
	ResultReleaseDelay = 10 * time.Minute
)

// AttemptStatus is the release state of an attempt record.
type AttemptStatus string

const (
	StatusPending   AttemptStatus = "pending"
	StatusAvailable AttemptStatus = "available"
)

// AnswerEntry is one question's outcome inside an attempt.
type AnswerEntry struct {
	QuestionID     string  `json:"questionId"`
	SelectedOption *string `json:"selectedOption"`
	Flagged        bool    `json:"flagged"`
}

// AttemptRecord is the persisted outcome of one test-taking session.
type AttemptRecord struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId"`
	TestID            string        `json:"testId"`
	UserEmail         string        `json:"userEmail,omitempty"`
	UserName          string        `json:"userName,omitempty"`
	TestTitle         string        `json:"testTitle,omitempty"`
	Answers           []AnswerEntry `json:"answers"`
	Score             float64       `json:"score"`
	Correct           int           `json:"correct"`
	Incorrect         int           `json:"incorrect"`
	Skipped           int           `json:"skipped"`
	TimeSpent         int           `json:"timeSpent"`
	TabSwitches       int           `json:"tabSwitches"`
	SubmittedAt       time.Time     `json:"submittedAt"`
	ResultAvailableAt time.Time     `json:"resultAvailableAt"`
	EmailSentAt       *time.Time    `json:"emailSentAt"`
	Status            AttemptStatus `json:"status"`
	AttemptNumber     int           `json:"attemptNumber"`
}

// Due reports whether the record's visibility time has passed at now.
func (r AttemptRecord) Due(now time.Time) bool {
	return !r.ResultAvailableAt.IsZero() && !r.ResultAvailableAt.After(now)
}

// Submission is the caller-supplied payload for a finished test.
// Score fields are trusted as-is; nothing recomputes them.
type Submission struct {
	UserID      string
	TestID      string
	UserEmail   string
	UserName    string
	TestTitle   string
	Answers     []AnswerEntry
	Score       float64
	Correct     int
	Incorrect   int
	Skipped     int
	TimeSpent   int
	TabSwitches int
}

// SubmissionReceipt is returned to the caller after a successful submission.
type SubmissionReceipt struct {
	ResultID          string
	ResultAvailableAt time.Time
	AttemptNumber     int
}

// AttemptHistory lists a user's attempts on one test.
type AttemptHistory struct {
	UserID    string          `json:"userId"`
	TestID    string          `json:"testId"`
	Attempts  []AttemptRecord `json:"attempts"`
	Remaining int             `json:"remaining"`
}

// ScanReport summarizes one release scanner run.
type ScanReport struct {
	Processed       int      `json:"processed"`
	EmailsSent      int      `json:"emailsSent"`
	Errors          []string `json:"errors,omitempty"`
	OutboxDelivered int      `json:"outboxDelivered,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// ResultRelease is published when an attempt becomes visible.
type ResultRelease struct {
	ResultID   string    `json:"resultId"`
	UserID     string    `json:"userId"`
	TestID     string    `json:"testId"`
	TestTitle  string    `json:"testTitle,omitempty"`
	ReleasedAt time.Time `json:"releasedAt"`
}

// User is a registered user who may receive broadcasts.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TestSeries is a published mock test.
type TestSeries struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Broadcast announces a newly published test to every user.
type Broadcast struct {
	TestID          string
	TestTitle       string
	TestDescription string
}

// BroadcastReport counts per-recipient outcomes.
type BroadcastReport struct {
	SuccessCount int    `json:"successCount"`
	FailCount    int    `json:"failCount"`
	Total        int    `json:"total"`
	Message      string `json:"-"`
}
