package models

import "fmt"

// Role is one of a closed set of account roles. Admin overrides ownership
// checks; editor and viewer have no ordering between them, permission is
// decided per route by an explicit required-role set.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// DefaultRole is assigned to accounts created without an explicit role.
const DefaultRole = RoleViewer

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// Valid reports whether r is a member of the role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ParseRole converts s into a Role. An empty string yields DefaultRole.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return DefaultRole, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q: must be one of admin, editor, viewer", s)
	}
	return r, nil
}
