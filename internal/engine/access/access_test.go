package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atlas/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	assert.False(t, Can(domain.RoleUsuario, ManageUsers))
	assert.False(t, Can(domain.RoleUsuario, ManageDepartments))
	assert.True(t, Can(domain.RoleCoordinador, ManageUsers))
	assert.False(t, Can(domain.RoleCoordinador, ManageDepartments))
	assert.True(t, Can(domain.RoleResponsable, ManageDepartments))
	assert.False(t, Can(domain.RoleResponsable, ManageUsers))
	assert.True(t, Can(domain.RoleAdministrador, ManageUsers))
	assert.True(t, Can(domain.RoleAdministrador, ManageServiceKeys))
}

func TestRequireReturnsTypedError(t *testing.T) {
	err := Require(domain.RoleUsuario, ManageUsers)
	fe, ok := err.(*ForbiddenError)
	if !ok {
		t.Fatalf("expected *ForbiddenError, got %T", err)
	}
	assert.Equal(t, ManageUsers, fe.Permission)
	assert.NoError(t, Require(domain.RoleAdministrador, ManageUsers))
}

func TestManagementSections(t *testing.T) {
	assert.Empty(t, ManagementSections(domain.RoleUsuario))
	assert.Equal(t, []string{"users"}, ManagementSections(domain.RoleCoordinador))
	assert.Equal(t, []string{"departments"}, ManagementSections(domain.RoleResponsable))
	assert.Equal(t, []string{"users", "departments", "overview"}, ManagementSections(domain.RoleAdministrador))
}
