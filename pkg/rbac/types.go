package rbac

// Role is an identifier drawn from one of the closed role catalogs
type Role string

// Console roles. An operator acts as exactly one of these at a time.
const (
	RoleSystemAdministrator  Role = "system-administrator"
	RoleCompanyManager       Role = "company-manager"
	RoleDeveloperInternal    Role = "developer-internal"
	RoleDeveloperExternal    Role = "developer-external"
	RoleSupportVendorSuccess Role = "support-vendor-success"
	RoleComplianceAuditor    Role = "compliance-auditor"
	RoleBusinessViewer       Role = "business-viewer"
)

// Directory roles held by administered user records
const (
	DirSystemAdmin    Role = "SYSTEM_ADMIN"
	DirCompanyOwner   Role = "COMPANY_OWNER"
	DirCompanyManager Role = "COMPANY_MANAGER"
	DirDeveloper      Role = "DEVELOPER"
	DirAnalyst        Role = "ANALYST"
	DirSupport        Role = "SUPPORT"
	DirViewer         Role = "VIEWER"
)

// TopConsoleRole is the console role with global scope
const TopConsoleRole = RoleSystemAdministrator

// TopDirectoryRole is the directory role protected by the last-admin rule
const TopDirectoryRole = DirSystemAdmin

// Capability is a named permission check
type Capability string

const (
	CapAccessCompanies       Capability = "access-companies"
	CapAccessUsers           Capability = "access-users"
	CapAccessServiceAccounts Capability = "access-service-accounts"
	CapAccessAPIs            Capability = "access-APIs"
	CapAccessMonitoring      Capability = "access-monitoring"
	CapAccessCompliance      Capability = "access-compliance"
	CapAccessAdminArea       Capability = "access-admin-area"
	CapAccessDevArea         Capability = "access-dev-area"
	CapInviteUsers           Capability = "invite-users"
	CapManageUserLifecycle   Capability = "manage-user-lifecycle"
	CapReadOnlyMode          Capability = "read-only-mode"
)

// AllCapabilities lists every capability in a stable order
func AllCapabilities() []Capability {
	return []Capability{
		CapAccessCompanies,
		CapAccessUsers,
		CapAccessServiceAccounts,
		CapAccessAPIs,
		CapAccessMonitoring,
		CapAccessCompliance,
		CapAccessAdminArea,
		CapAccessDevArea,
		CapInviteUsers,
		CapManageUserLifecycle,
		CapReadOnlyMode,
	}
}

// EntityClass is a kind of administered entity
type EntityClass string

const (
	EntityUsers         EntityClass = "users"
	EntityCompanies     EntityClass = "companies"
	EntityRegistrations EntityClass = "registrations"
	EntityAudit         EntityClass = "audit"
)

// AllEntityClasses lists every entity class in a stable order
func AllEntityClasses() []EntityClass {
	return []EntityClass{EntityUsers, EntityCompanies, EntityRegistrations, EntityAudit}
}

// Decision is the evaluated state of one capability for a role
type Decision struct {
	Capability Capability `json:"capability"`
	Allowed    bool       `json:"allowed"`
	Reason     string     `json:"reason,omitempty"`
}
