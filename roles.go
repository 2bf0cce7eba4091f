package accounts

import "strings"

// UserRole is the application role stored on the profile.
type UserRole string

const (
	// RoleApplicant is the default self-registered role
	RoleApplicant UserRole = "applicant"
	// RoleReviewer reviews applications
	RoleReviewer UserRole = "reviewer"
	// RoleStaff manages applications
	RoleStaff UserRole = "staff"
	// RoleAdmin manages accounts
	RoleAdmin UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RoleApplicant: 0,
	RoleReviewer:  1,
	RoleStaff:     2,
	RoleAdmin:     3,
}

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	current, ok := roleHierarchy[r]
	if !ok {
		return false
	}

	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}

	return current >= min
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleApplicant,
		RoleReviewer,
		RoleStaff,
		RoleAdmin,
	}
}

// ParseRole parses a role name, defaulting empty input to RoleApplicant.
func ParseRole(roleStr string) (UserRole, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(roleStr))
	if trimmed == "" {
		return RoleApplicant, true
	}
	role := UserRole(trimmed)
	return role, role.IsValid()
}
