package accounts

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAssignableRole reports whether a role may be granted through the role
// update or invitation flows. The superAdmin tag is assigned exactly once,
// to the first registered account, and never through the API.
func IsAssignableRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// RoleAtLeast checks if role meets the minimum required level.
func RoleAtLeast(role, minRole Role) bool {
	hierarchy := map[Role]int{
		RoleUser:       0,
		RoleAdmin:      1,
		RoleSuperAdmin: 2,
	}

	current, ok := hierarchy[role]
	if !ok {
		return false
	}

	min, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return current >= min
}

// IsElevated reports whether the role may invite accounts or inspect the
// user list.
func IsElevated(r Role) bool {
	return RoleAtLeast(r, RoleAdmin)
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
