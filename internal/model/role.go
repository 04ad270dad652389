package model

import "strings"

// Role is a human actor class. The escalation chain is a fixed total order:
// Clerk < Officer < Admin.
type Role string

const (
	RoleClerk   Role = "Clerk"
	RoleOfficer Role = "Officer"
	RoleAdmin   Role = "Admin"
)

// RoleRank maps roles to comparable integers for monotonic escalation.
var RoleRank = map[Role]int{
	RoleClerk:   0,
	RoleOfficer: 1,
	RoleAdmin:   2,
}

// ParseRole resolves a role name case-insensitively.
// Returns ("", false) for anything outside the known chain.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clerk":
		return RoleClerk, true
	case "officer":
		return RoleOfficer, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid returns true if r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := RoleRank[r]
	return ok
}

// EscalationTarget returns the next role up the chain.
// Admin is the ceiling: (_, false).
func (r Role) EscalationTarget() (Role, bool) {
	switch r {
	case RoleClerk:
		return RoleOfficer, true
	case RoleOfficer:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Equal compares roles case-insensitively. Stored roles are canonical, but
// caller-supplied roles arrive in whatever casing the client used.
func (r Role) Equal(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}
