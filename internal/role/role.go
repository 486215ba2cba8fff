// Package role defines the three permission tiers and their total order.
package role

import "strings"

type Role string

const (
	Admin   Role = "admin"
	Manager Role = "manager"
	User    Role = "user"
)

// Level maps a role onto its rank. Unknown values rank as the lowest tier.
func Level(r Role) int {
	switch r {
	case Admin:
		return 3
	case Manager:
		return 2
	default:
		return 1
	}
}

// AtLeast reports whether r ranks at or above threshold.
func AtLeast(r, threshold Role) bool {
	return Level(r) >= Level(threshold)
}

// Parse accepts a role name in any case, surrounded by optional whitespace.
func Parse(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	return r == Admin || r == Manager || r == User
}

func (r Role) String() string {
	return string(r)
}

// All lists the roles from highest to lowest.
func All() []Role {
	return []Role{Admin, Manager, User}
}
