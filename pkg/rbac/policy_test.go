package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed_Matrix(t *testing.T) {
	sa := RoleSystemAdministrator
	cm := RoleCompanyManager
	di := RoleDeveloperInternal
	de := RoleDeveloperExternal
	sv := RoleSupportVendorSuccess
	ca := RoleComplianceAuditor
	bv := RoleBusinessViewer

	expected := map[Capability][]Role{
		CapAccessCompanies:       {sa, cm, sv, ca},
		CapAccessUsers:           {sa, cm, sv},
		CapAccessServiceAccounts: {sa, cm, di, de},
		CapAccessAPIs:            {sa, cm, di, de, bv},
		CapAccessMonitoring:      {sa, di, sv, bv},
		CapAccessCompliance:      {sa, cm, ca},
		CapAccessAdminArea:       {sa},
		CapAccessDevArea:         {sa, di, de},
		CapInviteUsers:           {sa, cm},
		CapManageUserLifecycle:   {sa, cm},
		CapReadOnlyMode:          {di, de, sv, ca, bv},
	}

	require.Len(t, expected, len(AllCapabilities()), "every capability must be covered")
	require.Len(t, capabilityTable, len(AllCapabilities()))

	for _, capability := range AllCapabilities() {
		allow := roles(expected[capability]...)
		for _, role := range ConsoleCatalog().Roles() {
			t.Run(string(capability)+"/"+string(role), func(t *testing.T) {
				assert.Equal(t, allow.has(role), Allowed(role, capability))
			})
		}
	}
}

func TestAllowed_Deterministic(t *testing.T) {
	for _, role := range ConsoleCatalog().Roles() {
		for _, capability := range AllCapabilities() {
			first := Allowed(role, capability)
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, Allowed(role, capability))
			}
		}
	}
}

func TestAllowed_UnknownInputs(t *testing.T) {
	assert.False(t, Allowed(RoleSystemAdministrator, Capability("access-everything")))
	assert.False(t, Allowed(RoleSystemAdministrator, Capability("access-apis")), "capabilities are case sensitive")
	assert.False(t, Allowed(Role("root"), CapAccessCompanies))
}

func TestAllowed_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		role       Role
		capability Capability
		want       bool
	}{
		{"compliance auditor sees companies", RoleComplianceAuditor, CapAccessCompanies, true},
		{"compliance auditor cannot see users", RoleComplianceAuditor, CapAccessUsers, false},
		{"external developer sees APIs", RoleDeveloperExternal, CapAccessAPIs, true},
		{"external developer cannot open admin area", RoleDeveloperExternal, CapAccessAdminArea, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.role, tt.capability))
		})
	}
}

func TestReadOnly(t *testing.T) {
	tests := []struct {
		role  Role
		class EntityClass
		want  bool
	}{
		{RoleSystemAdministrator, EntityUsers, false},
		{RoleSystemAdministrator, EntityCompanies, false},
		{RoleSystemAdministrator, EntityRegistrations, false},
		{RoleSystemAdministrator, EntityAudit, true},
		{RoleCompanyManager, EntityUsers, false},
		{RoleCompanyManager, EntityCompanies, true},
		{RoleSupportVendorSuccess, EntityUsers, true},
		{RoleBusinessViewer, EntityUsers, true},
		{RoleComplianceAuditor, EntityCompanies, true},
		{RoleSystemAdministrator, EntityClass("widgets"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.class), func(t *testing.T) {
			assert.Equal(t, tt.want, ReadOnly(tt.role, tt.class))
		})
	}
}

func TestReadOnlyModeMatchesMutators(t *testing.T) {
	for _, role := range ConsoleCatalog().Roles() {
		mutatesSomething := false
		for _, class := range AllEntityClasses() {
			if CanMutate(role, class) {
				mutatesSomething = true
			}
		}
		assert.Equal(t, !mutatesSomething, Allowed(role, CapReadOnlyMode), string(role))
	}
}

func TestDisabledReason(t *testing.T) {
	reason := DisabledReason(RoleBusinessViewer, CapInviteUsers)
	assert.Equal(t, "Your role (Business Viewer) is not permitted to invite users.", reason)

	for _, capability := range AllCapabilities() {
		assert.NotEmpty(t, DisabledReason(RoleDeveloperExternal, capability))
	}

	assert.Contains(t, ReadOnlyReason(RoleSupportVendorSuccess, EntityUsers), "Support / Vendor Success")
}

func TestEvaluate(t *testing.T) {
	decisions := Evaluate(RoleDeveloperExternal)
	require.Len(t, decisions, len(AllCapabilities()))

	for _, d := range decisions {
		assert.Equal(t, Allowed(RoleDeveloperExternal, d.Capability), d.Allowed)
		if d.Allowed {
			assert.Empty(t, d.Reason)
		} else {
			assert.NotEmpty(t, d.Reason)
		}
	}
}
