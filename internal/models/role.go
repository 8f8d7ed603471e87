package models

import "strings"

// Role is an account's authorization role.
type Role string

const (
	RoleUser          Role = "user"
	RoleCommunityLead Role = "community_lead"
	RoleClubLead      Role = "club_lead"
	RoleClubMember    Role = "club_member"
	RoleAdmin         Role = "admin"
)

var allRoles = []Role{RoleUser, RoleCommunityLead, RoleClubLead, RoleClubMember, RoleAdmin}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole normalizes raw and reports whether it names a known role.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// RoleNames joins the known roles for messages.
func RoleNames() string {
	names := make([]string, len(allRoles))
	for i, r := range allRoles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
