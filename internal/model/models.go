// Package model holds the entities shared by the policy, scope and store layers.
package model

import (
	"strings"
	"time"

	"taskhub/internal/role"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Statuses lists every status in workflow order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusOverdue}
}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusOverdue:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities for sorting; 0 means unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Principal is the authenticated actor of a single request.
type Principal struct {
	ID    string    `json:"id"`
	Role  role.Role `json:"role"`
	Team  string    `json:"team,omitempty"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == role.Admin
}

func (p Principal) IsManager() bool {
	return p.Role == role.Manager
}

// HasTeam reports whether the principal carries a non-empty team label.
func (p Principal) HasTeam() bool {
	return strings.TrimSpace(p.Team) != ""
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CreatorID   string     `json:"creatorId"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	Team        string     `json:"team,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PastDue reports whether the due date lies before now.
func (t *Task) PastDue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// ApplyOverdue forces the overdue status on a past-due task that is not
// completed and reports whether the status changed.
func (t *Task) ApplyOverdue(now time.Time) bool {
	if t.Status == StatusCompleted || t.Status == StatusOverdue {
		return false
	}
	if !t.PastDue(now) {
		return false
	}
	t.Status = StatusOverdue
	return true
}

// PrepareSave fills defaults and timestamps and applies the overdue rule.
// Every write path goes through it.
func (t *Task) PrepareSave(now time.Time) {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.ApplyOverdue(now)
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         role.Role `json:"role"`
	Team         string    `json:"team,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Principal() Principal {
	return Principal{
		ID:    u.ID,
		Role:  u.Role,
		Team:  u.Team,
		Name:  u.Name,
		Email: u.Email,
	}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
