// Package scope turns a principal into the data filter its bulk queries run
// under. The role scope is always the first conjunct of a Filter; request
// parameters only ever narrow it.
//
// Scope rules:
//   - admin: the whole collection
//   - manager with a team label: tasks labelled with that team, plus the
//     tasks the manager created or is assigned to elsewhere
//   - everyone else, including a manager without a team: tasks the
//     principal created or is assigned to
//
// These rules mirror policy.CanAccessTask record by record; the package
// tests check the equivalence over generated populations.
package scope

import (
	"taskhub/internal/model"
)

type Kind int

const (
	// Universe applies no restriction.
	Universe Kind = iota
	// Team restricts to records carrying Scope.Team or, when PrincipalID is
	// set, records created by or assigned to that principal.
	Team
	// Personal restricts to records created by or assigned to Scope.PrincipalID.
	Personal
)

func (k Kind) String() string {
	switch k {
	case Universe:
		return "all"
	case Team:
		return "team"
	default:
		return "personal"
	}
}

type Scope struct {
	Kind        Kind
	Team        string
	PrincipalID string
}

// For derives the role scope of p.
func For(p model.Principal) Scope {
	switch {
	case p.IsAdmin():
		return All()
	case p.IsManager() && p.HasTeam():
		return Scope{Kind: Team, Team: p.Team, PrincipalID: p.ID}
	default:
		return Subject(p.ID)
	}
}

func All() Scope {
	return Scope{Kind: Universe}
}

// TeamOf scopes to one team label. An empty label matches nothing.
func TeamOf(team string) Scope {
	return Scope{Kind: Team, Team: team}
}

// Subject scopes to the tasks of one user, whoever is asking. An empty id
// matches nothing.
func Subject(userID string) Scope {
	return Scope{Kind: Personal, PrincipalID: userID}
}

// Empty reports whether the scope can never match a record.
func (s Scope) Empty() bool {
	switch s.Kind {
	case Team:
		return s.Team == "" && s.PrincipalID == ""
	case Personal:
		return s.PrincipalID == ""
	}
	return false
}

// Matches evaluates the scope against a single task.
func (s Scope) Matches(t *model.Task) bool {
	if t == nil || s.Empty() {
		return false
	}
	switch s.Kind {
	case Universe:
		return true
	case Team:
		return (s.Team != "" && t.Team == s.Team) || s.owns(t)
	default:
		return s.owns(t)
	}
}

func (s Scope) owns(t *model.Task) bool {
	return s.PrincipalID != "" && (t.CreatorID == s.PrincipalID || t.AssigneeID == s.PrincipalID)
}

// MatchesUser evaluates the scope against a user record: a personal scope
// only sees the user itself.
func (s Scope) MatchesUser(u *model.User) bool {
	if u == nil || s.Empty() {
		return false
	}
	switch s.Kind {
	case Universe:
		return true
	case Team:
		return (s.Team != "" && u.Team == s.Team) || (s.PrincipalID != "" && u.ID == s.PrincipalID)
	default:
		return u.ID == s.PrincipalID
	}
}

// Key is a short stable label used inside cache fingerprints.
func (s Scope) Key() string {
	switch s.Kind {
	case Team:
		if s.PrincipalID != "" {
			return "team=" + s.Team + "+user=" + s.PrincipalID
		}
		return "team=" + s.Team
	case Personal:
		return "user=" + s.PrincipalID
	default:
		return "all"
	}
}
