package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"prepcuet/internal/domain"
)

// AttemptStore persists attempt records in the attempts table. The quota
// check holds a transaction-scoped advisory lock on (user, test); the
// (user_id, test_id, attempt_number) unique key backs it up.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

const attemptColumns = `id, user_id, test_id, user_email, user_name, test_title, answers,
	score, correct, incorrect, skipped, time_spent, tab_switches,
	submitted_at, result_available_at, email_sent_at, status, attempt_number`

func (s *AttemptStore) CreateAttempt(ctx context.Context, rec domain.AttemptRecord, maxAttempts int) (domain.AttemptRecord, error) {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return domain.AttemptRecord{}, errors.Wrap(err, "encode answers")
	}

	err = s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.UserID+"/"+rec.TestID); err != nil {
			return errors.Wrap(err, "lock attempt quota")
		}
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM attempts WHERE user_id=$1 AND test_id=$2`, rec.UserID, rec.TestID,
		).Scan(&count); err != nil {
			return errors.Wrap(err, "count attempts")
		}
		if count >= maxAttempts {
			return domain.ErrQuotaExceeded
		}
		rec.AttemptNumber = count + 1
		rec.Status = domain.StatusPending

		_, err := tx.Exec(ctx, `INSERT INTO attempts (`+attemptColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			rec.ID, rec.UserID, rec.TestID, rec.UserEmail, rec.UserName, rec.TestTitle, string(answers),
			rec.Score, rec.Correct, rec.Incorrect, rec.Skipped, rec.TimeSpent, rec.TabSwitches,
			rec.SubmittedAt, rec.ResultAvailableAt, rec.EmailSentAt, string(rec.Status), rec.AttemptNumber)
		return err
	})

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, domain.ErrQuotaExceeded):
		return domain.AttemptRecord{}, domain.ErrQuotaExceeded
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return domain.AttemptRecord{}, domain.ErrQuotaExceeded
	default:
		return domain.AttemptRecord{}, errors.Wrapf(err, "create attempt %s", rec.ID)
	}
}

func (s *AttemptStore) GetAttempt(ctx context.Context, id string) (domain.AttemptRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, id)
	rec, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptRecord{}, errors.Wrapf(err, "get attempt %s", id)
	}
	return rec, nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, userID, testID string) ([]domain.AttemptRecord, error) {
	return s.query(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE user_id=$1 AND test_id=$2 ORDER BY attempt_number`, userID, testID)
}

func (s *AttemptStore) ListPending(ctx context.Context) ([]domain.AttemptRecord, error) {
	return s.query(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE status='pending' ORDER BY result_available_at`)
}

func (s *AttemptStore) MarkAvailable(ctx context.Context, id string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE attempts SET status='available', email_sent_at=$2 WHERE id=$1 AND status='pending'`, id, sentAt)
	if err != nil {
		return errors.Wrapf(err, "release attempt %s", id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM attempts WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAttemptNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "release attempt %s", id)
	}
	return domain.ErrNotPending
}

func (s *AttemptStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query attempts")
	}
	defer rows.Close()

	out := make([]domain.AttemptRecord, 0)
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate attempts")
}

func scanAttempt(row pgx.Row) (domain.AttemptRecord, error) {
	var (
		rec     domain.AttemptRecord
		answers []byte
		status  string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.TestID, &rec.UserEmail, &rec.UserName, &rec.TestTitle, &answers,
		&rec.Score, &rec.Correct, &rec.Incorrect, &rec.Skipped, &rec.TimeSpent, &rec.TabSwitches,
		&rec.SubmittedAt, &rec.ResultAvailableAt, &rec.EmailSentAt, &status, &rec.AttemptNumber)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	rec.Status = domain.AttemptStatus(status)
	if err := json.Unmarshal(answers, &rec.Answers); err != nil {
		return domain.AttemptRecord{}, errors.Wrap(err, "decode answers")
	}
	return rec, nil
}
