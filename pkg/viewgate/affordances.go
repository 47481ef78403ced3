package viewgate

import (
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

// ControlKind is the type of UI element an affordance describes
type ControlKind string

const (
	KindButton ControlKind = "button"
	KindFilter ControlKind = "filter"
	KindColumn ControlKind = "column"
	KindAction ControlKind = "row-action"
)

// ControlState distinguishes why a control is unavailable
type ControlState string

const (
	StateEnabled   ControlState = "enabled"
	StateReadOnly  ControlState = "read-only"
	StateForbidden ControlState = "forbidden"
	StateLastAdmin ControlState = "last-admin"
	StateHidden    ControlState = "hidden"
)

// Affordance is the render decision for one control
type Affordance struct {
	Name    string       `json:"name"`
	Kind    ControlKind  `json:"kind"`
	Visible bool         `json:"visible"`
	Enabled bool         `json:"enabled"`
	State   ControlState `json:"state"`
	Reason  string       `json:"reason,omitempty"`
}

type control struct {
	name       string
	kind       ControlKind
	mutating   bool
	capability rbac.Capability
	globalOnly bool
}

var controls = map[rbac.EntityClass][]control{
	rbac.EntityUsers: {
		{name: "invite", kind: KindButton, mutating: true, capability: rbac.CapInviteUsers},
		{name: "company", kind: KindFilter, globalOnly: true},
		{name: "status", kind: KindFilter},
		{name: "role", kind: KindFilter},
		{name: "company", kind: KindColumn, globalOnly: true},
		{name: "last_login", kind: KindColumn},
	},
	rbac.EntityCompanies: {
		{name: "create", kind: KindButton, mutating: true},
		{name: "status", kind: KindFilter},
		{name: "vendor", kind: KindFilter},
		{name: "teams", kind: KindColumn},
	},
	rbac.EntityRegistrations: {
		{name: "approve", kind: KindButton, mutating: true},
		{name: "reject", kind: KindButton, mutating: true},
		{name: "status", kind: KindFilter},
	},
	rbac.EntityAudit: {
		{name: "export", kind: KindButton, capability: rbac.CapAccessCompliance},
		{name: "company", kind: KindFilter, globalOnly: true},
		{name: "action", kind: KindFilter},
		{name: "actor", kind: KindColumn},
	},
}

// Affordances returns the controls of an entity list page for the current role.
// Mutating controls stay visible but disabled in read-only mode. Tenant-irrelevant
// filters and columns are hidden.
func (g *Gate) Affordances(class rbac.EntityClass) []Affordance {
	role := g.provider.CurrentRole()
	global := g.Scope().IsGlobal()

	var out []Affordance
	for _, c := range controls[class] {
		a := Affordance{Name: c.name, Kind: c.kind, Visible: true, Enabled: true, State: StateEnabled}
		switch {
		case c.globalOnly && !global:
			a.Visible, a.Enabled, a.State = false, false, StateHidden
		case c.mutating && rbac.ReadOnly(role, class):
			a.Enabled, a.State = false, StateReadOnly
			a.Reason = rbac.ReadOnlyReason(role, class)
		case c.capability != "" && !rbac.Allowed(role, c.capability):
			a.Enabled, a.State = false, StateForbidden
			a.Reason = rbac.DisabledReason(role, c.capability)
		}
		out = append(out, a)
	}
	return out
}

// UserRowActions returns the lifecycle actions for one user row. otherActiveAdmins is
// the number of Active System Admins other than this user. Tenant-scoped roles cannot
// change the roles of a System Admin.
func (g *Gate) UserRowActions(u users.User, otherActiveAdmins int) []Affordance {
	role := g.provider.CurrentRole()
	canManage := rbac.Allowed(role, rbac.CapManageUserLifecycle) && rbac.CanMutate(role, rbac.EntityUsers)
	lastAdmin := u.IsActiveAdmin() && otherActiveAdmins == 0
	adminLocked := u.HasRole(rbac.TopDirectoryRole) && !g.Scope().IsGlobal()

	type action struct {
		name        string
		applies     bool
		guardsAdmin bool
		editsRoles  bool
	}
	actions := []action{
		{name: "activate", applies: u.Status == users.StatusInvited},
		{name: "resend-invite", applies: u.Status == users.StatusInvited},
		{name: "suspend", applies: u.Status == users.StatusActive, guardsAdmin: true},
		{name: "unsuspend", applies: u.Status == users.StatusSuspended},
		{name: "deactivate", applies: u.Status != users.StatusDeactivated, guardsAdmin: true},
		{name: "edit-roles", applies: u.Status != users.StatusDeactivated, editsRoles: true},
		{name: "remove-admin-role", applies: u.Status != users.StatusDeactivated && u.HasRole(rbac.TopDirectoryRole), guardsAdmin: true, editsRoles: true},
	}

	out := make([]Affordance, 0, len(actions))
	for _, act := range actions {
		a := Affordance{Name: act.name, Kind: KindAction, Visible: act.applies, Enabled: act.applies, State: StateEnabled}
		switch {
		case !act.applies:
			a.State = StateHidden
		case !canManage:
			a.Enabled, a.State = false, StateReadOnly
			a.Reason = rbac.DisabledReason(role, rbac.CapManageUserLifecycle)
		case act.editsRoles && adminLocked:
			a.Enabled, a.State = false, StateForbidden
			a.Reason = users.AdminGrantMessage(role)
		case act.guardsAdmin && lastAdmin:
			a.Enabled, a.State = false, StateLastAdmin
			a.Reason = apperr.LastAdminMessage
		}
		out = append(out, a)
	}
	return out
}
