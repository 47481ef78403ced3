// Package rbac provides the role catalogs and the access policy for the Integration Hub console.
//
// # Overview
//
// Two closed role catalogs coexist:
//
//	Console roles   - the role a signed-in operator acts as (system-administrator, company-manager, ...)
//	Directory roles - roles held by administered user records (SYSTEM_ADMIN, COMPANY_OWNER, ...)
//
// Each catalog is total: every role has a label, a description and an icon.
// Describing a role outside the catalog is a programming error and panics.
//
// # Access Policy
//
// Capabilities are evaluated through a lookup table of allow-lists:
//
//	rbac.Allowed(rbac.RoleComplianceAuditor, rbac.CapAccessCompanies) // true
//	rbac.Allowed(rbac.RoleComplianceAuditor, rbac.CapAccessUsers)     // false
//
// Policy functions are pure. They consult only the role and never return errors.
// Unknown capabilities evaluate to false.
//
// Read-only mode is derived per entity class:
//
//	rbac.ReadOnly(rbac.RoleBusinessViewer, rbac.EntityUsers) // true
//
// Controls disabled by read-only mode carry the text from DisabledReason.
//
// # HTTP Enforcement
//
// CapabilityMiddleware rejects requests whose current role lacks a capability:
//
//	mw := rbac.NewCapabilityMiddleware(roleFromRequest, metrics.RecordPolicyDecision)
//	router.Handle("/api/users", mw.RequireCapability(rbac.CapAccessUsers)(handler))
//
// # Related Packages
//
//   - pkg/session: holds the current role and notifies on switches
//   - pkg/viewgate: turns capabilities into route and affordance decisions
package rbac
