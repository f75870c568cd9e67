package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"prepcuet/internal/domain"
)

// TestLoader loads test series rows from Postgres.
type TestLoader struct {
	pool *pgxpool.Pool
}

func NewTestLoader(pool *pgxpool.Pool) *TestLoader {
	return &TestLoader{pool: pool}
}

func (l *TestLoader) LoadTest(ctx context.Context, testID string) (domain.TestSeries, error) {
	var test domain.TestSeries
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, description FROM test_series WHERE id=$1`, testID,
	).Scan(&test.ID, &test.Title, &test.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TestSeries{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.TestSeries{}, errors.Wrap(err, "load test series")
	}
	return test, nil
}

// UserDirectory lists registered users from Postgres.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "iterate users")
}
