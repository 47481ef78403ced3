package rbac

import (
	"fmt"
	"strings"
)

// RoleInfo is the display metadata of a role
type RoleInfo struct {
	Role        Role   `json:"role" yaml:"role"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// Catalog is a closed, ordered set of roles with their metadata
type Catalog struct {
	name  string
	order []Role
	info  map[Role]RoleInfo
}

func newCatalog(name string, roles ...RoleInfo) *Catalog {
	c := &Catalog{
		name:  name,
		order: make([]Role, 0, len(roles)),
		info:  make(map[Role]RoleInfo, len(roles)),
	}
	for _, r := range roles {
		c.order = append(c.order, r.Role)
		c.info[r.Role] = r
	}
	return c
}

var consoleCatalog = newCatalog("console",
	RoleInfo{
		Role:        RoleSystemAdministrator,
		Label:       "System Administrator",
		Description: "Full platform access across every tenant",
		Icon:        "admin_panel_settings",
	},
	RoleInfo{
		Role:        RoleCompanyManager,
		Label:       "Company Manager",
		Description: "Manages users, APIs and compliance for one company",
		Icon:        "business",
	},
	RoleInfo{
		Role:        RoleDeveloperInternal,
		Label:       "Developer (Internal)",
		Description: "Builds integrations and monitors internal services",
		Icon:        "code",
	},
	RoleInfo{
		Role:        RoleDeveloperExternal,
		Label:       "Developer (External)",
		Description: "Partner developer consuming published APIs",
		Icon:        "integration_instructions",
	},
	RoleInfo{
		Role:        RoleSupportVendorSuccess,
		Label:       "Support / Vendor Success",
		Description: "Assists companies and their users",
		Icon:        "support_agent",
	},
	RoleInfo{
		Role:        RoleComplianceAuditor,
		Label:       "Compliance Auditor",
		Description: "Reviews companies and compliance artifacts",
		Icon:        "policy",
	},
	RoleInfo{
		Role:        RoleBusinessViewer,
		Label:       "Business Viewer",
		Description: "Read-only view of APIs and usage",
		Icon:        "visibility",
	},
)

var directoryCatalog = newCatalog("directory",
	RoleInfo{
		Role:        DirSystemAdmin,
		Label:       "System Admin",
		Description: "Administers the whole platform",
		Icon:        "shield",
	},
	RoleInfo{
		Role:        DirCompanyOwner,
		Label:       "Company Owner",
		Description: "Owns a company account and its billing",
		Icon:        "workspace_premium",
	},
	RoleInfo{
		Role:        DirCompanyManager,
		Label:       "Company Manager",
		Description: "Manages a company's users and settings",
		Icon:        "manage_accounts",
	},
	RoleInfo{
		Role:        DirDeveloper,
		Label:       "Developer",
		Description: "Creates service accounts and calls APIs",
		Icon:        "terminal",
	},
	RoleInfo{
		Role:        DirAnalyst,
		Label:       "Analyst",
		Description: "Reads usage and monitoring data",
		Icon:        "insights",
	},
	RoleInfo{
		Role:        DirSupport,
		Label:       "Support",
		Description: "Handles support requests for a company",
		Icon:        "help_center",
	},
	RoleInfo{
		Role:        DirViewer,
		Label:       "Viewer",
		Description: "Read-only access",
		Icon:        "visibility",
	},
)

// ConsoleCatalog returns the catalog of roles an operator can act as
func ConsoleCatalog() *Catalog {
	return consoleCatalog
}

// DirectoryCatalog returns the catalog of roles held by administered users
func DirectoryCatalog() *Catalog {
	return directoryCatalog
}

// Name returns the catalog name
func (c *Catalog) Name() string {
	return c.name
}

// List returns every role's metadata in declaration order
func (c *Catalog) List() []RoleInfo {
	out := make([]RoleInfo, 0, len(c.order))
	for _, r := range c.order {
		out = append(out, c.info[r])
	}
	return out
}

// Roles returns the role identifiers in declaration order
func (c *Catalog) Roles() []Role {
	out := make([]Role, len(c.order))
	copy(out, c.order)
	return out
}

// Describe returns the metadata of a role. It panics if the role is not in the catalog.
func (c *Catalog) Describe(role Role) RoleInfo {
	info, ok := c.info[role]
	if !ok {
		panic(fmt.Sprintf("rbac: role %q is not in the %s catalog", role, c.name))
	}
	return info
}

// Contains reports whether the role belongs to the catalog
func (c *Catalog) Contains(role Role) bool {
	_, ok := c.info[role]
	return ok
}

// Parse resolves user input to a catalog role, ignoring case and surrounding space
func (c *Catalog) Parse(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range c.order {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}
