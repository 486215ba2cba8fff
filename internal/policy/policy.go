// Package policy decides, for a principal and a target entity, which
// operations are allowed. Every function is pure and total: a denial is a
// false result, never an error. Callers translate denials into the right
// response (not found for single tasks, forbidden for capability checks).
package policy

import (
	"taskhub/internal/model"
	"taskhub/internal/role"
)

// sameTeam is true only when both labels are set and equal. An empty label
// never grants team authority.
func sameTeam(a, b string) bool {
	return a != "" && a == b
}

// CanAccessTask is the single predicate behind task read, update, delete and
// assignment lookups.
func CanAccessTask(p model.Principal, t *model.Task) bool {
	if t == nil || p.ID == "" {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if p.IsManager() && sameTeam(p.Team, t.Team) {
		return true
	}
	return t.CreatorID == p.ID || (t.AssigneeID != "" && t.AssigneeID == p.ID)
}

// CanAssign reports whether the principal may hand tasks to other users.
func CanAssign(p model.Principal) bool {
	return role.AtLeast(p.Role, role.Manager)
}

// CanManage reports whether p may edit or delete target.
func CanManage(p, target model.Principal) bool {
	if p.ID == "" || p.ID == target.ID {
		return false
	}
	switch p.Role {
	case role.Admin:
		return true
	case role.Manager:
		return sameTeam(p.Team, target.Team) && target.Role == role.User
	default:
		return false
	}
}

// CanAssignRole reports whether p may grant r. A self change is rejected
// separately with IsSelf at the mutation site.
func CanAssignRole(p model.Principal, r role.Role) bool {
	return p.IsAdmin() && r.Valid()
}

// IsSelf reports whether targetID names the principal itself.
func IsSelf(p model.Principal, targetID string) bool {
	return p.ID != "" && p.ID == targetID
}

func CanViewUserStats(p, target model.Principal) bool {
	if IsSelf(p, target.ID) || p.IsAdmin() {
		return true
	}
	return p.IsManager() && sameTeam(p.Team, target.Team)
}

// CanViewUser applies the stats rule to profile lookups by id.
func CanViewUser(p, target model.Principal) bool {
	return CanViewUserStats(p, target)
}

func CanViewTeamStats(p model.Principal, team string) bool {
	switch p.Role {
	case role.Admin:
		return true
	case role.Manager:
		return sameTeam(p.Team, team)
	default:
		return false
	}
}

// CanSetTaskTeam reports whether p may label a task with team. Admins may
// use any label; everyone else only their own (or none, if they have none).
func CanSetTaskTeam(p model.Principal, team string) bool {
	if p.IsAdmin() {
		return true
	}
	return team == p.Team
}
