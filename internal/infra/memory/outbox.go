package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"prepcuet/internal/domain"
)

// Outbox keeps notification retries in process memory. Jobs are lost on restart.
type Outbox struct {
	mu   sync.Mutex
	jobs []domain.NotificationJob
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Enqueue(_ context.Context, job domain.NotificationJob) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
	return nil
}

func (o *Outbox) Due(_ context.Context, now time.Time, limit int) ([]domain.NotificationJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sort.SliceStable(o.jobs, func(i, j int) bool { return o.jobs[i].NextRetryAt.Before(o.jobs[j].NextRetryAt) })

	var due []domain.NotificationJob
	keep := o.jobs[:0]
	for _, job := range o.jobs {
		if len(due) < limit && !job.NextRetryAt.After(now) {
			due = append(due, job)
			continue
		}
		keep = append(keep, job)
	}
	o.jobs = keep
	return due, nil
}

// Len reports how many jobs are waiting.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}
