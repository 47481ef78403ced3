package viewgate

import (
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
)

// Gate decides route access and UI affordances for one console session
type Gate struct {
	provider    session.Provider
	nav         Navigator
	routes      *Routes
	logger      *observability.Logger
	onRedirect  func(from, to string)
	unsubscribe func()
}

// Option configures a Gate
type Option func(*Gate)

// WithRedirectHook registers a callback invoked after a role change or a route table
// reload forces a redirect
func WithRedirectHook(fn func(from, to string)) Option {
	return func(g *Gate) {
		g.onRedirect = fn
	}
}

// NewGate creates a gate and subscribes it to the session's role changes
func NewGate(provider session.Provider, nav Navigator, routes *Routes, logger *observability.Logger, opts ...Option) *Gate {
	g := &Gate{
		provider: provider,
		nav:      nav,
		routes:   routes,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.unsubscribe = provider.Subscribe(g.onRoleChange)
	return g
}

// Close detaches the gate from the session
func (g *Gate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

// Landing returns the default landing route
func (g *Gate) Landing() string {
	return g.routes.Load().Landing
}

// CanActivate reports whether the current role may open the path
func (g *Gate) CanActivate(path string) bool {
	return g.routes.Load().CanActivate(g.provider.CurrentRole(), path)
}

// Navigate moves to path if it can be activated and reports the route actually shown
func (g *Gate) Navigate(path string) (string, bool) {
	if !g.CanActivate(path) {
		return g.nav.CurrentPath(), false
	}
	g.nav.Navigate(path)
	return path, true
}

// CurrentPath returns the route currently displayed
func (g *Gate) CurrentPath() string {
	return g.nav.CurrentPath()
}

func (g *Gate) onRoleChange(c session.Change) {
	g.redirectIfDenied(c.Current, "route no longer accessible after role switch, redirecting")
}

// Revalidate redirects to the landing route when the current route can no longer be
// activated, as after a route table reload. It reports the route redirected to.
func (g *Gate) Revalidate() (string, bool) {
	return g.redirectIfDenied(g.provider.CurrentRole(), "route no longer accessible after route table reload, redirecting")
}

func (g *Gate) redirectIfDenied(role rbac.Role, msg string) (string, bool) {
	table := g.routes.Load()
	current := g.nav.CurrentPath()
	if table.CanActivate(role, current) {
		return "", false
	}

	g.nav.Navigate(table.Landing)
	g.logger.WithFields(map[string]interface{}{
		"role": string(role),
		"from": current,
		"to":   table.Landing,
	}).Info(msg)
	if g.onRedirect != nil {
		g.onRedirect(current, table.Landing)
	}
	return table.Landing, true
}

// NavItem is a menu entry with its visibility for the current role
type NavItem struct {
	Path    string `json:"path"`
	Label   string `json:"label"`
	Icon    string `json:"icon,omitempty"`
	Visible bool   `json:"visible"`
}

// Navigation returns the menu entries. Entries the role cannot open are hidden.
func (g *Gate) Navigation() []NavItem {
	role := g.provider.CurrentRole()
	table := g.routes.Load()

	var items []NavItem
	for _, r := range table.Routes {
		if !r.Nav {
			continue
		}
		items = append(items, NavItem{
			Path:    r.Prefix,
			Label:   r.Label,
			Icon:    r.Icon,
			Visible: rbac.Allowed(role, r.Capability),
		})
	}
	return items
}

// Scope returns the scope of the current role
func (g *Gate) Scope() scope.Scope {
	return scope.Of(g.provider.CurrentIdentity(), g.provider.CurrentRole())
}
