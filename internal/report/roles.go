package report

import (
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTester Role = "TESTER"
	RoleVendor Role = "VENDOR"
)

// RoleSet is a validated, de-duplicated set of roles. The zero value holds no
// roles.
type RoleSet struct {
	roles map[Role]struct{}
}

// ParseRoles builds a RoleSet from role names. Names are trimmed and matched
// case-insensitively; unknown names are rejected.
func ParseRoles(names []string) (RoleSet, error) {
	set := RoleSet{roles: make(map[Role]struct{}, len(names))}
	for _, name := range names {
		r := Role(strings.ToUpper(strings.TrimSpace(name)))
		switch r {
		case RoleAdmin, RoleTester, RoleVendor:
			set.roles[r] = struct{}{}
		case "":
			continue
		default:
			return RoleSet{}, fmt.Errorf("unknown role %q", name)
		}
	}
	return set, nil
}

// MustRoles is ParseRoles for literals known to be valid.
func MustRoles(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		set.roles[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Any reports whether the set holds at least one of roles.
func (s RoleSet) Any(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// List returns the roles in sorted order.
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(s.roles))
	for r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = string(r)
	}
	return out
}

func (s RoleSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// Caller is the authenticated user performing an operation.
type Caller struct {
	UserID   string
	Username string
	Roles    RoleSet
}
