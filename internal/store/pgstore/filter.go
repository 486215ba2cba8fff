package pgstore

import (
	"fmt"
	"strings"

	"taskhub/internal/scope"
)

// clause accumulates WHERE conjuncts and their positional arguments.
type clause struct {
	where []string
	args  []any
}

func (c *clause) arg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *clause) add(format string, vals ...any) {
	refs := make([]any, len(vals))
	for i, v := range vals {
		refs[i] = c.arg(v)
	}
	c.where = append(c.where, fmt.Sprintf(format, refs...))
}

func (c *clause) sql() string {
	if len(c.where) == 0 {
		return "TRUE"
	}
	return strings.Join(c.where, " AND ")
}

// scope renders the role scope. It is always the first conjunct.
func (c *clause) scope(s scope.Scope) {
	if s.Empty() {
		c.where = append(c.where, "FALSE")
		return
	}
	switch s.Kind {
	case scope.Universe:
		c.where = append(c.where, "TRUE")
	case scope.Team:
		switch {
		case s.Team != "" && s.PrincipalID != "":
			team, me := c.arg(s.Team), c.arg(s.PrincipalID)
			c.where = append(c.where, fmt.Sprintf("(team = %s OR creator_id = %s OR assignee_id = %s)", team, me, me))
		case s.Team != "":
			c.add("team = %s", s.Team)
		default:
			me := c.arg(s.PrincipalID)
			c.where = append(c.where, fmt.Sprintf("(creator_id = %s OR assignee_id = %s)", me, me))
		}
	default:
		me := c.arg(s.PrincipalID)
		c.where = append(c.where, fmt.Sprintf("(creator_id = %s OR assignee_id = %s)", me, me))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func taskWhere(f scope.Filter) *clause {
	c := &clause{}
	c.scope(f.Scope)

	cr := f.Criteria
	if cr.Status != "" {
		c.add("status = %s", string(cr.Status))
	}
	if cr.Priority != "" {
		c.add("priority = %s", string(cr.Priority))
	}
	if cr.AssigneeID != "" {
		c.add("assignee_id = %s", cr.AssigneeID)
	}
	if cr.CreatorID != "" {
		c.add("creator_id = %s", cr.CreatorID)
	}
	if cr.Team != "" {
		c.add("team = %s", cr.Team)
	}
	if cr.DueFrom != nil {
		c.add("due_date >= %s", *cr.DueFrom)
	}
	if cr.DueTo != nil {
		c.add("due_date <= %s", *cr.DueTo)
	}
	if len(cr.IDs) > 0 {
		c.add("taskid = ANY(%s)", cr.IDs)
	}
	if cr.Search != "" {
		like := c.arg("%" + escapeLike(cr.Search) + "%")
		c.where = append(c.where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", like, like))
	}
	return c
}

func userWhere(f scope.UserFilter) *clause {
	c := &clause{}
	s := f.Scope
	switch {
	case s.Empty():
		c.where = append(c.where, "FALSE")
	case s.Kind == scope.Universe:
		c.where = append(c.where, "TRUE")
	case s.Kind == scope.Team && s.Team != "" && s.PrincipalID != "":
		team, me := c.arg(s.Team), c.arg(s.PrincipalID)
		c.where = append(c.where, fmt.Sprintf("(team = %s OR userid = %s)", team, me))
	case s.Kind == scope.Team && s.Team != "":
		c.add("team = %s", s.Team)
	default:
		c.add("userid = %s", s.PrincipalID)
	}

	if f.Role != "" {
		c.add("role = %s", string(f.Role))
	}
	if f.Search != "" {
		like := c.arg("%" + escapeLike(f.Search) + "%")
		c.where = append(c.where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", like, like))
	}
	return c
}

const priorityRankSQL = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"

func taskOrderClause(s scope.Sort) string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	switch s.Field {
	case scope.SortDueDate:
		return fmt.Sprintf("due_date %s NULLS LAST, taskid ASC", dir)
	case scope.SortPriority:
		return fmt.Sprintf("%s %s, taskid ASC", priorityRankSQL, dir)
	default:
		return fmt.Sprintf("created_at %s, taskid ASC", dir)
	}
}
