package access

import (
	"fmt"

	"atlas/internal/domain"
)

// Permission names one management capability.
type Permission string

const (
	ManageUsers       Permission = "manage_users"
	ManageDepartments Permission = "manage_departments"
	ViewOverview      Permission = "view_overview"
	ManageServiceKeys Permission = "manage_service_keys"
)

// ForbiddenError reports a role/permission mismatch.
type ForbiddenError struct {
	Role       domain.Role
	Permission Permission
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %s lacks permission %s", e.Role, e.Permission)
}

var rolePerms = map[domain.Role]map[Permission]bool{
	domain.RoleUsuario:     {},
	domain.RoleCoordinador: {ManageUsers: true},
	domain.RoleResponsable: {ManageDepartments: true},
	domain.RoleAdministrador: {
		ManageUsers:       true,
		ManageDepartments: true,
		ViewOverview:      true,
		ManageServiceKeys: true,
	},
}

// Can reports whether the role holds the permission.
func Can(role domain.Role, p Permission) bool {
	return rolePerms[role][p]
}

// Require returns a ForbiddenError when the role lacks the permission.
func Require(role domain.Role, p Permission) error {
	if !Can(role, p) {
		return &ForbiddenError{Role: role, Permission: p}
	}
	return nil
}

// ManagementSections lists the admin navigation sections the role may see.
// A plain Usuario sees none; an Administrador sees all of them.
func ManagementSections(role domain.Role) []string {
	var out []string
	if Can(role, ManageUsers) {
		out = append(out, "users")
	}
	if Can(role, ManageDepartments) {
		out = append(out, "departments")
	}
	if Can(role, ViewOverview) {
		out = append(out, "overview")
	}
	return out
}
