package scope

import (
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/model"
	"taskhub/internal/role"
)

// Users derives the scope of a user listing: admins see everyone, managers
// with a team see that team, anyone else sees only themselves.
func Users(p model.Principal) Scope {
	return For(p)
}

type UserFilter struct {
	Scope  Scope
	Role   role.Role
	Search string
}

func (f UserFilter) Matches(u *model.User) bool {
	if !f.Scope.MatchesUser(u) {
		return false
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			return false
		}
	}
	return true
}

type UserQuery struct {
	Filter UserFilter
	Page   Page
}

type UserParams struct {
	Role   string `form:"role"`
	Search string `form:"search"`
	Page   string `form:"page"`
	Limit  string `form:"limit"`
}

func BuildUsers(p model.Principal, params UserParams) (UserQuery, error) {
	fields := map[string]string{}
	q := UserQuery{Filter: UserFilter{Scope: Users(p)}}

	if params.Role != "" {
		r, ok := role.Parse(params.Role)
		if !ok {
			fields["role"] = "must be one of admin, manager, user"
		}
		q.Filter.Role = r
	}
	q.Filter.Search = strings.TrimSpace(params.Search)

	page, errs := parsePage(params.Page, params.Limit)
	for k, v := range errs {
		fields[k] = v
	}
	q.Page = page

	if len(fields) > 0 {
		return UserQuery{}, apperr.Validation("invalid query parameters", fields)
	}
	return q, nil
}
