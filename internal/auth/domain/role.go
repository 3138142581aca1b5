package domain

// Role is a user's privilege tier. Tiers are strictly ordered.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Rank orders roles; unknown roles rank below RoleUser.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r is min or a more privileged role.
func (r Role) AtLeast(min Role) bool { return r.Valid() && r.Rank() >= min.Rank() }

// RolesAtLeast lists every role at or above min, for role-gated routes.
func RolesAtLeast(min Role) []string {
	var out []string
	for _, r := range []Role{RoleUser, RoleAdmin, RoleSuperAdmin} {
		if r.AtLeast(min) {
			out = append(out, string(r))
		}
	}
	return out
}
