package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	accounts "github.com/userkit/go-accounts"
)

func TestRoleHierarchy(t *testing.T) {
	assert.True(t, accounts.RoleAtLeast(accounts.RoleSuperAdmin, accounts.RoleAdmin))
	assert.True(t, accounts.RoleAtLeast(accounts.RoleAdmin, accounts.RoleAdmin))
	assert.True(t, accounts.RoleAtLeast(accounts.RoleAdmin, accounts.RoleUser))
	assert.False(t, accounts.RoleAtLeast(accounts.RoleUser, accounts.RoleAdmin))
	assert.False(t, accounts.RoleAtLeast("intern", accounts.RoleUser))
	assert.False(t, accounts.RoleAtLeast(accounts.RoleUser, "intern"))
}

func TestAssignableRoles(t *testing.T) {
	assert.True(t, accounts.IsAssignableRole(accounts.RoleUser))
	assert.True(t, accounts.IsAssignableRole(accounts.RoleAdmin))
	assert.False(t, accounts.IsAssignableRole(accounts.RoleSuperAdmin))
	assert.False(t, accounts.IsAssignableRole("owner"))
}

func TestIsElevated(t *testing.T) {
	assert.True(t, accounts.IsElevated(accounts.RoleSuperAdmin))
	assert.True(t, accounts.IsElevated(accounts.RoleAdmin))
	assert.False(t, accounts.IsElevated(accounts.RoleUser))
}

func TestParseRole(t *testing.T) {
	role, ok := accounts.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleAdmin, role)

	_, ok = accounts.ParseRole("root")
	assert.False(t, ok)

	_, ok = accounts.ParseRole("")
	assert.False(t, ok)
}
