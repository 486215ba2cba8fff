// Package memstore is an in-process Store for local development and tests.
// It evaluates filters with scope.Filter.Matches, the reference semantics the
// database backends render into SQL and BSON.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/scope"
	"taskhub/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	tasks   map[string]model.Task
	users   map[string]model.User
	revoked map[string]time.Time
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tasks:   make(map[string]model.Task),
		users:   make(map[string]model.User),
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for revocation expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func cloneTask(t model.Task) model.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

func (s *Store) CreateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return store.ErrDuplicate
	}
	s.tasks[t.ID] = cloneTask(*t)
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneTask(t)
	return &out, nil
}

func (s *Store) UpdateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	s.tasks[t.ID] = cloneTask(*t)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) matching(f scope.Filter) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if f.Matches(&t) {
			out = append(out, cloneTask(t))
		}
	}
	return out
}

func (s *Store) ListTasks(_ context.Context, q scope.Query) ([]model.Task, int64, error) {
	s.mu.RLock()
	all := s.matching(q.Filter)
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b model.Task) int {
		switch {
		case q.Sort.Less(&a, &b):
			return -1
		case q.Sort.Less(&b, &a):
			return 1
		}
		return 0
	})

	total := int64(len(all))
	start, end := bounds(q.Page, len(all))
	return all[start:end], total, nil
}

func (s *Store) CountByStatus(_ context.Context, f scope.Filter) (map[model.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := store.EmptyStatusCounts()
	for _, t := range s.matching(f) {
		out[t.Status]++
	}
	return out, nil
}

func (s *Store) CountByPriority(_ context.Context, f scope.Filter) (map[model.Priority]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := store.EmptyPriorityCounts()
	for _, t := range s.matching(f) {
		out[t.Priority]++
	}
	return out, nil
}

func (s *Store) BulkAssign(_ context.Context, f scope.Filter, ids []string, assigneeID string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	f.Criteria.IDs = ids
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched int64
	for id, t := range s.tasks {
		if !f.Matches(&t) {
			continue
		}
		t.AssigneeID = assigneeID
		t.UpdatedAt = now
		t.ApplyOverdue(now)
		s.tasks[id] = t
		matched++
	}
	return matched, nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := model.NormalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return store.ErrDuplicate
		}
	}
	if _, ok := s.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *u
	cp.Email = email
	s.users[u.ID] = cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, q scope.UserQuery) ([]model.User, int64, error) {
	s.mu.RLock()
	out := make([]model.User, 0)
	for _, u := range s.users {
		if q.Filter.Matches(&u) {
			out = append(out, u)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})

	total := int64(len(out))
	start, end := bounds(q.Page, len(out))
	return out[start:end], total, nil
}

func (s *Store) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *u
	cp.Email = model.NormalizeEmail(u.Email)
	for id, existing := range s.users {
		if id != u.ID && existing.Email == cp.Email {
			return store.ErrDuplicate
		}
	}
	s.users[u.ID] = cp
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[store.TokenDigest(token)] = expiresAt
	return nil
}

func (s *Store) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.revoked[store.TokenDigest(token)]
	return ok && exp.After(s.now()), nil
}

// PurgeExpiredRevocations forgets revocations whose token has expired.
func (s *Store) PurgeExpiredRevocations(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for digest, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, digest)
			n++
		}
	}
	return n, nil
}

// bounds converts a page into slice bounds over n records.
func bounds(p scope.Page, n int) (int, int) {
	start := p.Offset()
	if start < 0 || start > n {
		start = n
	}
	end := start + min(max(p.Size, 0), n-start)
	return start, end
}
