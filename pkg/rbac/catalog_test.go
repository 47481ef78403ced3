package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleCatalog_Total(t *testing.T) {
	want := []Role{
		RoleSystemAdministrator,
		RoleCompanyManager,
		RoleDeveloperInternal,
		RoleDeveloperExternal,
		RoleSupportVendorSuccess,
		RoleComplianceAuditor,
		RoleBusinessViewer,
	}
	assert.Equal(t, want, ConsoleCatalog().Roles())

	for _, info := range ConsoleCatalog().List() {
		t.Run(string(info.Role), func(t *testing.T) {
			assert.NotEmpty(t, info.Label)
			assert.NotEmpty(t, info.Description)
			assert.NotEmpty(t, info.Icon)
			assert.Equal(t, info, ConsoleCatalog().Describe(info.Role))
		})
	}
}

func TestDirectoryCatalog_Total(t *testing.T) {
	want := []Role{
		DirSystemAdmin,
		DirCompanyOwner,
		DirCompanyManager,
		DirDeveloper,
		DirAnalyst,
		DirSupport,
		DirViewer,
	}
	assert.Equal(t, want, DirectoryCatalog().Roles())

	for _, info := range DirectoryCatalog().List() {
		t.Run(string(info.Role), func(t *testing.T) {
			assert.NotEmpty(t, info.Label)
			assert.NotEmpty(t, info.Description)
			assert.NotEmpty(t, info.Icon)
		})
	}
}

func TestCatalogs_AreDistinct(t *testing.T) {
	for _, r := range ConsoleCatalog().Roles() {
		assert.False(t, DirectoryCatalog().Contains(r), string(r))
	}
	for _, r := range DirectoryCatalog().Roles() {
		assert.False(t, ConsoleCatalog().Contains(r), string(r))
	}
}

func TestCatalog_DescribeUnknownPanics(t *testing.T) {
	assert.Panics(t, func() {
		ConsoleCatalog().Describe(Role("superuser"))
	})
	assert.Panics(t, func() {
		ConsoleCatalog().Describe(DirSystemAdmin)
	})
	assert.Panics(t, func() {
		DirectoryCatalog().Describe(RoleSystemAdministrator)
	})
}

func TestCatalog_Parse(t *testing.T) {
	role, ok := ConsoleCatalog().Parse("  Business-Viewer ")
	require.True(t, ok)
	assert.Equal(t, RoleBusinessViewer, role)

	role, ok = DirectoryCatalog().Parse("system_admin")
	require.True(t, ok)
	assert.Equal(t, DirSystemAdmin, role)

	_, ok = ConsoleCatalog().Parse("SYSTEM_ADMIN")
	assert.False(t, ok)
}

func TestCatalog_ListIsCopy(t *testing.T) {
	list := ConsoleCatalog().List()
	list[0].Label = "changed"
	assert.Equal(t, "System Administrator", ConsoleCatalog().Describe(RoleSystemAdministrator).Label)

	roles := ConsoleCatalog().Roles()
	roles[0] = "changed"
	assert.Equal(t, RoleSystemAdministrator, ConsoleCatalog().Roles()[0])
}
