package rbac

// Role is a workspace-scoped capability level. Every higher role is a strict
// superset of every lower one; there are no cross-cutting exceptions.
type Role string

const (
	RoleNone   Role = ""
	RoleViewer Role = "viewer"
	RoleWriter Role = "writer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Level returns the position of a role in the fixed total order
// viewer(0) < writer(1) < editor(2) < admin(3) < owner(4).
// RoleNone and unknown roles return -1 and fail every check.
func Level(role Role) int {
	switch role {
	case RoleViewer:
		return 0
	case RoleWriter:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	default:
		return -1
	}
}

// Allows reports whether a resolved role satisfies a required role.
func Allows(role, required Role) bool {
	if Level(role) < 0 {
		return false
	}
	return Level(role) >= Level(required)
}

// Valid reports whether a role string names a storable membership role.
// Owner is implicit on the workspace row and never stored as a membership.
func Valid(role Role) bool {
	switch role {
	case RoleViewer, RoleWriter, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleWriter, RoleEditor, RoleAdmin, RoleOwner:
		return Role(role)
	default:
		return RoleNone
	}
}
