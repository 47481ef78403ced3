package rbac

import "fmt"

type roleSet map[Role]struct{}

func roles(rs ...Role) roleSet {
	s := make(roleSet, len(rs))
	for _, r := range rs {
		s[r] = struct{}{}
	}
	return s
}

func (s roleSet) has(r Role) bool {
	_, ok := s[r]
	return ok
}

// mutators lists the console roles allowed to change each entity class
var mutators = map[EntityClass]roleSet{
	EntityUsers:         roles(RoleSystemAdministrator, RoleCompanyManager),
	EntityCompanies:     roles(RoleSystemAdministrator),
	EntityRegistrations: roles(RoleSystemAdministrator),
	EntityAudit:         roles(),
}

// capabilityTable maps every capability to its predicate over the role
var capabilityTable = map[Capability]func(Role) bool{
	CapAccessCompanies: roles(
		RoleSystemAdministrator, RoleCompanyManager, RoleSupportVendorSuccess, RoleComplianceAuditor,
	).has,
	CapAccessUsers: roles(
		RoleSystemAdministrator, RoleCompanyManager, RoleSupportVendorSuccess,
	).has,
	CapAccessServiceAccounts: roles(
		RoleSystemAdministrator, RoleCompanyManager, RoleDeveloperInternal, RoleDeveloperExternal,
	).has,
	CapAccessAPIs: roles(
		RoleSystemAdministrator, RoleCompanyManager, RoleDeveloperInternal, RoleDeveloperExternal, RoleBusinessViewer,
	).has,
	CapAccessMonitoring: roles(
		RoleSystemAdministrator, RoleDeveloperInternal, RoleSupportVendorSuccess, RoleBusinessViewer,
	).has,
	CapAccessCompliance: roles(
		RoleSystemAdministrator, RoleCompanyManager, RoleComplianceAuditor,
	).has,
	CapAccessAdminArea: roles(RoleSystemAdministrator).has,
	CapAccessDevArea: roles(
		RoleSystemAdministrator, RoleDeveloperInternal, RoleDeveloperExternal,
	).has,
	CapInviteUsers:         roles(RoleSystemAdministrator, RoleCompanyManager).has,
	CapManageUserLifecycle: roles(RoleSystemAdministrator, RoleCompanyManager).has,
	CapReadOnlyMode:        mutatesNothing,
}

// capabilityActions is the phrase used in disabled-control explanations
var capabilityActions = map[Capability]string{
	CapAccessCompanies:       "view companies",
	CapAccessUsers:           "view users",
	CapAccessServiceAccounts: "manage service accounts",
	CapAccessAPIs:            "view APIs",
	CapAccessMonitoring:      "view monitoring",
	CapAccessCompliance:      "view compliance artifacts",
	CapAccessAdminArea:       "open the administration area",
	CapAccessDevArea:         "open the developer area",
	CapInviteUsers:           "invite users",
	CapManageUserLifecycle:   "change user status",
	CapReadOnlyMode:          "use read-only mode",
}

func mutatesNothing(r Role) bool {
	for _, s := range mutators {
		if s.has(r) {
			return false
		}
	}
	return true
}

// Allowed reports whether the role holds the capability. Unknown capabilities are denied.
func Allowed(role Role, capability Capability) bool {
	pred, ok := capabilityTable[capability]
	if !ok {
		return false
	}
	return pred(role)
}

// Evaluate returns the decision for every capability for the role
func Evaluate(role Role) []Decision {
	caps := AllCapabilities()
	out := make([]Decision, 0, len(caps))
	for _, c := range caps {
		d := Decision{Capability: c, Allowed: Allowed(role, c)}
		if !d.Allowed {
			d.Reason = DisabledReason(role, c)
		}
		out = append(out, d)
	}
	return out
}

// CanMutate reports whether the role may change entities of the class
func CanMutate(role Role, class EntityClass) bool {
	s, ok := mutators[class]
	if !ok {
		return false
	}
	return s.has(role)
}

// ReadOnly reports whether the role sees the entity class in read-only mode
func ReadOnly(role Role, class EntityClass) bool {
	return !CanMutate(role, class)
}

// DisabledReason explains why a control gated by the capability is unavailable
func DisabledReason(role Role, capability Capability) string {
	action, ok := capabilityActions[capability]
	if !ok {
		action = string(capability)
	}
	return fmt.Sprintf("Your role (%s) is not permitted to %s.", roleLabel(role), action)
}

// ReadOnlyReason explains why mutating controls for the entity class are disabled
func ReadOnlyReason(role Role, class EntityClass) string {
	return fmt.Sprintf("Read-only: your role (%s) cannot modify %s.", roleLabel(role), class)
}

func roleLabel(role Role) string {
	if consoleCatalog.Contains(role) {
		return consoleCatalog.Describe(role).Label
	}
	if directoryCatalog.Contains(role) {
		return directoryCatalog.Describe(role).Label
	}
	return string(role)
}
