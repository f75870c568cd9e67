package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"prepcuet/internal/domain"
)

// AttemptStore keeps attempt records in Redis.
//
//	HSET prepcuet:attempt:{id} doc <json> status <status> attemptNumber <n> emailSentAt <ms>
//	SADD prepcuet:attempts:{len(userID)}:{userID}:{testID} {id}
//	ZADD prepcuet:attempts:pending <resultAvailableAt ms> {id}
//
// Quota checks and release transitions run as Lua scripts so concurrent
// submissions and concurrent scanners cannot interleave.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

// KEYS: owner set, attempt hash, pending zset. ARGV: max, id, doc, due ms.
var createAttemptScript = redis.NewScript(`
local n = redis.call('SCARD', KEYS[1])
if n >= tonumber(ARGV[1]) then
  return -1
end
local num = n + 1
redis.call('SADD', KEYS[1], ARGV[2])
redis.call('HSET', KEYS[2], 'doc', ARGV[3], 'status', 'pending', 'attemptNumber', num)
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[2])
return num
`)

// KEYS: attempt hash, pending zset. ARGV: sent-at ms, id.
var releaseAttemptScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= 'pending' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'available', 'emailSentAt', ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)

func (s *AttemptStore) CreateAttempt(ctx context.Context, rec domain.AttemptRecord, maxAttempts int) (domain.AttemptRecord, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return domain.AttemptRecord{}, errors.Wrap(err, "encode attempt")
	}
	keys := []string{ownerKey(rec.UserID, rec.TestID), attemptKey(rec.ID), pendingKey}
	num, err := createAttemptScript.Run(ctx, s.client, keys,
		maxAttempts, rec.ID, string(doc), rec.ResultAvailableAt.UnixMilli()).Int()
	if err != nil {
		return domain.AttemptRecord{}, errors.Wrapf(err, "create attempt %s", rec.ID)
	}
	if num < 0 {
		return domain.AttemptRecord{}, domain.ErrQuotaExceeded
	}
	rec.AttemptNumber = num
	rec.Status = domain.StatusPending
	return rec, nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, id string) (domain.AttemptRecord, error) {
	fields, err := s.client.HGetAll(ctx, attemptKey(id)).Result()
	if err != nil {
		return domain.AttemptRecord{}, errors.Wrapf(err, "get attempt %s", id)
	}
	return decodeAttempt(fields)
}

func (s *AttemptStore) ListAttempts(ctx context.Context, userID, testID string) ([]domain.AttemptRecord, error) {
	ids, err := s.client.SMembers(ctx, ownerKey(userID, testID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list attempt ids")
	}
	out, err := s.loadAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (s *AttemptStore) ListPending(ctx context.Context) ([]domain.AttemptRecord, error) {
	ids, err := s.client.ZRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list pending ids")
	}
	return s.loadAll(ctx, ids)
}

func (s *AttemptStore) MarkAvailable(ctx context.Context, id string, sentAt time.Time) error {
	res, err := releaseAttemptScript.Run(ctx, s.client, []string{attemptKey(id), pendingKey},
		sentAt.UnixMilli(), id).Int()
	if err != nil {
		return errors.Wrapf(err, "release attempt %s", id)
	}
	switch res {
	case -1:
		return domain.ErrAttemptNotFound
	case 0:
		return domain.ErrNotPending
	}
	return nil
}

func (s *AttemptStore) loadAll(ctx context.Context, ids []string) ([]domain.AttemptRecord, error) {
	if len(ids) == 0 {
		return []domain.AttemptRecord{}, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, attemptKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load attempts")
	}

	out := make([]domain.AttemptRecord, 0, len(ids))
	for _, cmd := range cmds {
		rec, err := decodeAttempt(cmd.Val())
		if errors.Is(err, domain.ErrAttemptNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeAttempt(fields map[string]string) (domain.AttemptRecord, error) {
	raw, ok := fields["doc"]
	if !ok {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	var rec domain.AttemptRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.AttemptRecord{}, errors.Wrap(err, "decode attempt")
	}
	rec.Status = domain.AttemptStatus(fields["status"])
	if n, err := strconv.Atoi(fields["attemptNumber"]); err == nil {
		rec.AttemptNumber = n
	}
	rec.EmailSentAt = nil
	if ms, err := strconv.ParseInt(fields["emailSentAt"], 10, 64); err == nil {
		sent := time.UnixMilli(ms).UTC()
		rec.EmailSentAt = &sent
	}
	return rec, nil
}

const pendingKey = "prepcuet:attempts:pending"

func attemptKey(id string) string {
	return "prepcuet:attempt:" + id
}

// ownerKey length-prefixes the user id so ids containing ':' cannot collide.
func ownerKey(userID, testID string) string {
	return "prepcuet:attempts:" + strconv.Itoa(len(userID)) + ":" + userID + ":" + testID
}
