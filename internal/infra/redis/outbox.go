package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"prepcuet/internal/domain"
)

const outboxKey = "prepcuet:outbox:notifications"

// Outbox stores notification retries in a sorted set scored by next retry time.
// Due claims a job with ZREM, so two scanners never redeliver the same job.
type Outbox struct {
	client *redis.Client
}

func NewOutbox(client *redis.Client) *Outbox {
	return &Outbox{client: client}
}

type outboxEntry struct {
	domain.NotificationJob
	CreatedAtMs   int64 `json:"createdAt"`
	NextRetryAtMs int64 `json:"nextRetryAt"`
}

func (o *Outbox) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	raw, err := json.Marshal(outboxEntry{
		NotificationJob: job,
		CreatedAtMs:     job.CreatedAt.UnixMilli(),
		NextRetryAtMs:   job.NextRetryAt.UnixMilli(),
	})
	if err != nil {
		return errors.Wrap(err, "encode notification job")
	}
	err = o.client.ZAdd(ctx, outboxKey, redis.Z{
		Score:  float64(job.NextRetryAt.UnixMilli()),
		Member: string(raw),
	}).Err()
	return errors.Wrapf(err, "enqueue notification job %s", job.ID)
}

func (o *Outbox) Due(ctx context.Context, now time.Time, limit int) ([]domain.NotificationJob, error) {
	members, err := o.client.ZRangeByScore(ctx, outboxKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read outbox")
	}

	jobs := make([]domain.NotificationJob, 0, len(members))
	for _, member := range members {
		claimed, err := o.client.ZRem(ctx, outboxKey, member).Result()
		if err != nil {
			return jobs, errors.Wrap(err, "claim outbox job")
		}
		if claimed == 0 {
			continue
		}
		var entry outboxEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			// unreadable entries are already removed; nothing can redeliver them
			continue
		}
		job := entry.NotificationJob
		job.CreatedAt = time.UnixMilli(entry.CreatedAtMs).UTC()
		job.NextRetryAt = time.UnixMilli(entry.NextRetryAtMs).UTC()
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Len reports how many jobs are waiting.
func (o *Outbox) Len(ctx context.Context) (int64, error) {
	return o.client.ZCard(ctx, outboxKey).Result()
}
