package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingIdentifiers is returned when userId or testId is blank.
	ErrMissingIdentifiers = errors.New("userId and testId are required")
	// ErrQuotaExceeded is returned once a user has used every attempt on a test.
	ErrQuotaExceeded = errors.New("maximum attempts reached for this test")
	// ErrUnauthorized is returned when a caller fails the shared-secret or admin check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAttemptNotFound indicates the attempt record does not exist for the caller.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrNotPending is returned by a release transition on an already released record.
	ErrNotPending = errors.New("attempt is not pending")
	// ErrTestNotFound indicates the test series could not be loaded.
	ErrTestNotFound = errors.New("test series not found")
	// ErrMissingBroadcastFields is returned when a broadcast lacks testId or testTitle.
	ErrMissingBroadcastFields = errors.New("testId and testTitle are required")
	// ErrResultNotReady matches any *NotReadyError.
	ErrResultNotReady = errors.New("result not yet available")
)

// NotReadyError carries the visibility time of a still-pending result.
type NotReadyError struct {
	AvailableAt time.Time
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("result not yet available until %s", e.AvailableAt.UTC().Format(time.RFC3339))
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrResultNotReady
}
