package scope

import (
	"slices"
	"strings"
	"time"

	"taskhub/internal/model"
)

// Criteria are the request-supplied dimensions. Zero values mean "any".
type Criteria struct {
	Status     model.Status
	Priority   model.Priority
	Search     string
	AssigneeID string
	CreatorID  string
	Team       string
	DueFrom    *time.Time
	DueTo      *time.Time
	IDs        []string
}

func (c Criteria) Matches(t *model.Task) bool {
	if c.Status != "" && t.Status != c.Status {
		return false
	}
	if c.Priority != "" && t.Priority != c.Priority {
		return false
	}
	if c.AssigneeID != "" && t.AssigneeID != c.AssigneeID {
		return false
	}
	if c.CreatorID != "" && t.CreatorID != c.CreatorID {
		return false
	}
	if c.Team != "" && t.Team != c.Team {
		return false
	}
	if c.DueFrom != nil || c.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if c.DueFrom != nil && t.DueDate.Before(*c.DueFrom) {
			return false
		}
		if c.DueTo != nil && t.DueDate.After(*c.DueTo) {
			return false
		}
	}
	if len(c.IDs) > 0 && !slices.Contains(c.IDs, t.ID) {
		return false
	}
	if c.Search != "" {
		needle := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Filter is the role scope ANDed with the request criteria.
type Filter struct {
	Scope    Scope
	Criteria Criteria
}

// Where starts a filter from a scope with no extra criteria.
func Where(s Scope) Filter {
	return Filter{Scope: s}
}

func (f Filter) Matches(t *model.Task) bool {
	return f.Scope.Matches(t) && f.Criteria.Matches(t)
}

// With returns a copy of f narrowed by c. Fields already set on f win, so a
// caller cannot widen a filter it was handed.
func (f Filter) With(c Criteria) Filter {
	out := f
	if out.Criteria.Status == "" {
		out.Criteria.Status = c.Status
	}
	if out.Criteria.Priority == "" {
		out.Criteria.Priority = c.Priority
	}
	if out.Criteria.Search == "" {
		out.Criteria.Search = c.Search
	}
	if out.Criteria.AssigneeID == "" {
		out.Criteria.AssigneeID = c.AssigneeID
	}
	if out.Criteria.CreatorID == "" {
		out.Criteria.CreatorID = c.CreatorID
	}
	if out.Criteria.Team == "" {
		out.Criteria.Team = c.Team
	}
	if out.Criteria.DueFrom == nil {
		out.Criteria.DueFrom = c.DueFrom
	}
	if out.Criteria.DueTo == nil {
		out.Criteria.DueTo = c.DueTo
	}
	if len(out.Criteria.IDs) == 0 {
		out.Criteria.IDs = c.IDs
	}
	return out
}
