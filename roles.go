package auth

import (
	"sort"
	"strings"
)

// Role is the access tier attached to an identity
type Role string

const (
	// RoleUser is the default tier for every new identity
	RoleUser Role = "user"
	// RolePremium is the paid tier toggled by admins
	RolePremium Role = "premium"
	// RoleAdmin manages other identities
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RolePremium, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// AllRoles returns all predefined roles
func AllRoles() []Role {
	return []Role{
		RoleUser,
		RolePremium,
		RoleAdmin,
	}
}

func (r Role) level() int {
	switch r {
	case RoleUser:
		return 1
	case RolePremium:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// IsAtLeast checks the role against the user < premium < admin ladder
func (r Role) IsAtLeast(min Role) bool {
	if !r.IsValid() || !min.IsValid() {
		return false
	}
	return r.level() >= min.level()
}

// CanRead any identity can read
func (r Role) CanRead() bool {
	return r.IsValid()
}

// CanEdit premium and admin identities can edit
func (r Role) CanEdit() bool {
	return r.IsAtLeast(RolePremium)
}

// CanCreate premium and admin identities can create
func (r Role) CanCreate() bool {
	return r.IsAtLeast(RolePremium)
}

// CanDelete only admins delete
func (r Role) CanDelete() bool {
	return r == RoleAdmin
}

// ParseRole safely parses a string into a Role
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.IsValid()
}

// RoleSet is the set of roles a route accepts.
// The zero value allows nobody.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds an allow-set, invalid roles are ignored
func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		if r.IsValid() {
			set.roles[r] = struct{}{}
		}
	}
	return set
}

// Contains reports whether role is allowed
func (s RoleSet) Contains(role Role) bool {
	if !role.IsValid() {
		return false
	}
	_, ok := s.roles[role]
	return ok
}

// IsEmpty is true when no role is allowed
func (s RoleSet) IsEmpty() bool {
	return len(s.roles) == 0
}

// Roles returns the members in a stable order
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) String() string {
	roles := s.Roles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
