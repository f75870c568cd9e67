package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"prepcuet/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.AttemptRecord
	byOwner  map[string][]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.AttemptRecord),
		byOwner:  make(map[string][]string),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, rec domain.AttemptRecord, maxAttempts int) (domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey(rec.UserID, rec.TestID)
	count := len(s.byOwner[key])
	if count >= maxAttempts {
		return domain.AttemptRecord{}, domain.ErrQuotaExceeded
	}
	rec.AttemptNumber = count + 1
	s.attempts[rec.ID] = rec
	s.byOwner[key] = append(s.byOwner[key], rec.ID)
	return rec, nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, id string) (domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attempts[id]
	if !ok {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	return rec, nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, userID, testID string) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byOwner[ownerKey(userID, testID)]
	out := make([]domain.AttemptRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.attempts[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (s *AttemptStore) ListPending(_ context.Context) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, 0)
	for _, rec := range s.attempts {
		if rec.Status == domain.StatusPending {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResultAvailableAt.Before(out[j].ResultAvailableAt) })
	return out, nil
}

func (s *AttemptStore) MarkAvailable(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if rec.Status != domain.StatusPending {
		return domain.ErrNotPending
	}
	rec.Status = domain.StatusAvailable
	stamped := sentAt
	rec.EmailSentAt = &stamped
	s.attempts[id] = rec
	return nil
}

func ownerKey(userID, testID string) string {
	return userID + "\x00" + testID
}
