package mtask

import (
	"strings"
	"time"

	"taskhub/internal/model"
)

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      string     `json:"status" binding:"omitempty,oneof=todo in-progress completed"`
	AssigneeID  string     `json:"assigneeId" binding:"max=64"`
	// Team defaults to the creator's own team when omitted.
	Team *string `json:"team" binding:"omitempty,max=100"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      *string    `json:"status" binding:"omitempty,oneof=todo in-progress completed"`
	Team        *string    `json:"team" binding:"omitempty,max=100"`
}

func (r *UpdateTaskRequest) empty() bool {
	return r.Title == nil && r.Description == nil && r.DueDate == nil && !r.ClearDue &&
		r.Priority == nil && r.Status == nil && r.Team == nil
}

// apply copies the set fields onto t.
func (r *UpdateTaskRequest) apply(t *model.Task) {
	if r.Title != nil {
		t.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.ClearDue {
		t.DueDate = nil
	}
	if r.DueDate != nil {
		due := r.DueDate.UTC()
		t.DueDate = &due
	}
	if r.Priority != nil {
		t.Priority = model.Priority(*r.Priority)
	}
	if r.Status != nil {
		t.Status = model.Status(*r.Status)
	}
	if r.Team != nil {
		t.Team = strings.TrimSpace(*r.Team)
	}
}

type AssignRequest struct {
	AssigneeID string `json:"assigneeId" binding:"required,max=64"`
}

type BulkAssignRequest struct {
	TaskIDs    []string `json:"taskIds" binding:"required,min=1,max=100,dive,required"`
	AssigneeID string   `json:"assigneeId" binding:"required,max=64"`
}

type BulkAssignResult struct {
	Requested int   `json:"requested"`
	Matched   int64 `json:"matched"`
}
