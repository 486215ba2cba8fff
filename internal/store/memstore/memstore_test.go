package memstore

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/internal/model"
	"taskhub/internal/role"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for i := range 25 {
		task := &model.Task{
			ID:        fmt.Sprintf("t%02d", i),
			Title:     fmt.Sprintf("task %d", i),
			CreatorID: []string{"u1", "u2", "m1"}[i%3],
			Team:      []string{"Sales", "Engineering"}[i%2],
			Priority:  model.Priorities()[i%3],
			Status:    model.StatusTodo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateTask(ctx, task))
	}
}

func TestListTasksPagesAndSorts(t *testing.T) {
	s := New()
	seed(t, s)

	q := scope.Query{
		Filter: scope.Where(scope.All()),
		Sort:   scope.DefaultSort(),
		Page:   scope.Page{Number: 2, Size: 10},
	}
	items, total, err := s.ListTasks(context.Background(), q)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, items, 10)
	assert.Equal(t, "t14", items[0].ID)
	assert.Equal(t, "t05", items[9].ID)

	q.Page.Number = 3
	items, _, err = s.ListTasks(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	q.Page.Number = 9
	items, _, err = s.ListTasks(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListPastTheEnd(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u1", Email: "a@example.com", Role: role.User}))

	pages := []scope.Page{
		{Number: math.MaxInt, Size: 10},
		{Number: scope.MaxPage, Size: scope.MaxLimit},
		{Number: 2, Size: 0},
	}
	for _, p := range pages {
		items, total, err := s.ListTasks(ctx, scope.Query{
			Filter: scope.Where(scope.All()),
			Sort:   scope.DefaultSort(),
			Page:   p,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 25, total)
		assert.Empty(t, items)

		users, utotal, err := s.ListUsers(ctx, scope.UserQuery{
			Filter: scope.UserFilter{Scope: scope.All()},
			Page:   p,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, utotal)
		assert.Empty(t, users)
	}
}

func TestListTasksAppliesScope(t *testing.T) {
	s := New()
	seed(t, s)

	p := model.Principal{ID: "u1", Role: role.User}
	q, err := scope.Build(p, scope.Params{Limit: "100"})
	require.NoError(t, err)

	items, total, err := s.ListTasks(context.Background(), q)
	require.NoError(t, err)
	assert.EqualValues(t, len(items), total)
	for _, it := range items {
		assert.Equal(t, "u1", it.CreatorID)
	}
}

func TestCounts(t *testing.T) {
	s := New()
	seed(t, s)

	byStatus, err := s.CountByStatus(context.Background(), scope.Where(scope.TeamOf("Sales")))
	require.NoError(t, err)
	assert.EqualValues(t, 13, byStatus[model.StatusTodo])
	assert.Contains(t, byStatus, model.StatusOverdue)

	byPriority, err := s.CountByPriority(context.Background(), scope.Where(scope.All()))
	require.NoError(t, err)
	assert.EqualValues(t, 9, byPriority[model.PriorityLow])
	assert.EqualValues(t, 8, byPriority[model.PriorityMedium])
	assert.EqualValues(t, 8, byPriority[model.PriorityHigh])
}

func TestBulkAssignRespectsFilter(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	past := base.Add(-time.Hour)
	overdue, err := s.GetTask(ctx, "t00")
	require.NoError(t, err)
	overdue.DueDate = &past
	require.NoError(t, s.UpdateTask(ctx, overdue))

	// t00 and t02 are Sales, t01 is Engineering, t99 does not exist.
	n, err := s.BulkAssign(ctx, scope.Where(scope.TeamOf("Sales")), []string{"t00", "t01", "t02", "t99"}, "u9", base)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, _ := s.GetTask(ctx, "t00")
	assert.Equal(t, "u9", got.AssigneeID)
	assert.Equal(t, model.StatusOverdue, got.Status)

	untouched, _ := s.GetTask(ctx, "t01")
	assert.Empty(t, untouched.AssigneeID)
}

func TestTaskNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, "missing"), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateTask(ctx, &model.Task{ID: "missing"}), store.ErrNotFound)
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u1", Email: "Ana@Example.com", Role: role.User, Team: "Sales"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{ID: "u2", Email: "ana@example.com "}), store.ErrDuplicate)

	u, err := s.GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u3", Email: "bo@example.com", Role: role.User, Team: "Ops"}))
	items, total, err := s.ListUsers(ctx, scope.UserQuery{
		Filter: scope.UserFilter{Scope: scope.TeamOf("Sales")},
		Page:   scope.Page{Number: 1, Size: 10},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "u1", items[0].ID)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevocationExpires(t *testing.T) {
	s := New()
	now := base
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "tok", base.Add(time.Hour)))
	revoked, err := s.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = s.IsRevoked(ctx, "other")
	assert.False(t, revoked)

	now = base.Add(2 * time.Hour)
	revoked, _ = s.IsRevoked(ctx, "tok")
	assert.False(t, revoked)
}

func TestPurgeExpiredRevocations(t *testing.T) {
	s := New()
	now := base
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "short", base.Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "long", base.Add(time.Hour)))

	n, err := s.PurgeExpiredRevocations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = base.Add(10 * time.Minute)
	n, err = s.PurgeExpiredRevocations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	revoked, _ := s.IsRevoked(ctx, "long")
	assert.True(t, revoked)
}
