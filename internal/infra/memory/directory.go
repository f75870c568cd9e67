package memory

import (
	"context"

	"prepcuet/internal/domain"
)

// UserDirectory is a fixed list of users, used when no database is configured.
type UserDirectory struct {
	users []domain.User
}

func NewUserDirectory(users []domain.User) *UserDirectory {
	return &UserDirectory{users: users}
}

func (d *UserDirectory) ListUsers(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, len(d.users))
	copy(out, d.users)
	return out, nil
}
