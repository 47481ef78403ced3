// Package scope resolves whether an actor sees every tenant or only their own company,
// and constrains queries accordingly.
package scope

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/session"
)

// Kind is the breadth of an actor's view
type Kind string

const (
	Global Kind = "global"
	Tenant Kind = "tenant"
)

// Scope is the derived view breadth of an actor
type Scope struct {
	Kind        Kind   `json:"kind"`
	CompanyID   string `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// noCompany never matches a real company id, so an unassociated tenant actor sees nothing
const noCompany = "\x00no-company"

// Of derives the scope of the identity acting as role
func Of(identity session.Identity, role rbac.Role) Scope {
	if role == rbac.TopConsoleRole {
		return Scope{Kind: Global}
	}
	companyID := identity.CompanyID
	if companyID == "" {
		companyID = noCompany
	}
	return Scope{
		Kind:        Tenant,
		CompanyID:   companyID,
		CompanyName: identity.CompanyName,
	}
}

// IsGlobal reports whether the scope spans all tenants
func (s Scope) IsGlobal() bool {
	return s.Kind == Global
}

// Constrain returns the company id a query must filter on. Tenant scope always
// returns its own company whatever was requested; global scope passes the request through.
func (s Scope) Constrain(requested string) string {
	if s.Kind == Tenant {
		return s.CompanyID
	}
	return requested
}

// Includes reports whether an entity owned by companyID is visible in the scope
func (s Scope) Includes(companyID string) bool {
	if s.Kind == Global {
		return true
	}
	return companyID != "" && companyID == s.CompanyID
}

// CompanyDirectory looks up company display names
type CompanyDirectory interface {
	CompanyName(ctx context.Context, companyID string) (string, error)
}

// Resolver derives scopes and fills in missing company names through a cache
type Resolver struct {
	directory CompanyDirectory
	names     *expirable.LRU[string, string]
}

// NewResolver creates a resolver caching up to size names for ttl
func NewResolver(directory CompanyDirectory, size int, ttl time.Duration) *Resolver {
	return &Resolver{
		directory: directory,
		names:     expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Resolve derives the scope and fills the company name when the identity lacks one.
// Lookup failures leave the name empty; the company id still constrains queries.
func (r *Resolver) Resolve(ctx context.Context, identity session.Identity, role rbac.Role) Scope {
	s := Of(identity, role)
	if s.Kind != Tenant || s.CompanyName != "" || s.CompanyID == noCompany || r.directory == nil {
		return s
	}

	if name, ok := r.names.Get(s.CompanyID); ok {
		s.CompanyName = name
		return s
	}

	name, err := r.directory.CompanyName(ctx, s.CompanyID)
	if err != nil {
		return s
	}
	r.names.Add(s.CompanyID, name)
	s.CompanyName = name
	return s
}

// Invalidate drops a cached company name, e.g. after a rename
func (r *Resolver) Invalidate(companyID string) {
	r.names.Remove(companyID)
}
