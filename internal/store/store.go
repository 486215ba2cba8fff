// Package store defines the persistence contracts the handlers run against.
// Every bulk method takes a scope.Filter whose role scope has already been
// derived from the principal; implementations must apply it in full.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/scope"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type TaskStore interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// UpdateTask overwrites the stored task. Last writer wins.
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, q scope.Query) ([]model.Task, int64, error)
	CountByStatus(ctx context.Context, f scope.Filter) (map[model.Status]int64, error)
	CountByPriority(ctx context.Context, f scope.Filter) (map[model.Priority]int64, error)
	// BulkAssign sets the assignee of every task in ids that also matches f,
	// in one write, and returns how many tasks matched. Each touched task gets
	// the overdue rule applied as of now.
	BulkAssign(ctx context.Context, f scope.Filter, ids []string, assigneeID string, now time.Time) (int64, error)
}

type UserStore interface {
	// CreateUser fails with ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, q scope.UserQuery) ([]model.User, int64, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

// RevocationStore remembers logged-out tokens until they would have expired
// anyway. Entries past their expiry are never reported as revoked.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Store bundles the three contracts of one backend.
type Store interface {
	TaskStore
	UserStore
	RevocationStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// TokenDigest is the form a token is stored in by every revocation backend.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EmptyStatusCounts returns a map with every status present at zero.
func EmptyStatusCounts() map[model.Status]int64 {
	out := make(map[model.Status]int64, 4)
	for _, s := range model.Statuses() {
		out[s] = 0
	}
	return out
}

func EmptyPriorityCounts() map[model.Priority]int64 {
	out := make(map[model.Priority]int64, 3)
	for _, p := range model.Priorities() {
		out[p] = 0
	}
	return out
}
