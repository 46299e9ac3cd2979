package auth

// Roles a user account can hold.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleHOD     = "hod"
	RoleAdmin   = "admin"
)

// Privileged lists the roles allowed to run groups, assignments and polls.
var Privileged = []string{RoleFaculty, RoleHOD, RoleAdmin}

// Approvers lists the roles that manage account approval.
var Approvers = []string{RoleHOD, RoleAdmin}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleFaculty, RoleHOD, RoleAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether role is faculty, hod or admin.
func IsPrivileged(role string) bool {
	return HasRole(role, Privileged...)
}

// HasRole reports whether role is in allowed.
func HasRole(role string, allowed ...string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role string
}

// Privileged reports whether the actor may manage groups, assignments and polls.
func (a Actor) Privileged() bool { return IsPrivileged(a.Role) }

// Actor returns the caller described by the token.
func (c Claims) Actor() Actor { return Actor{ID: c.Subject, Role: c.Role} }
