package viewgate

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

//go:embed routes.yaml
var defaultRoutesYAML []byte

// UnmappedPolicy decides routes that match no table entry
type UnmappedPolicy string

const (
	UnmappedDeny  UnmappedPolicy = "deny"
	UnmappedAllow UnmappedPolicy = "allow"
)

// Route maps a path prefix to the capability required to open it
type Route struct {
	Prefix     string          `yaml:"prefix" json:"prefix"`
	Capability rbac.Capability `yaml:"capability" json:"capability"`
	Label      string          `yaml:"label,omitempty" json:"label,omitempty"`
	Icon       string          `yaml:"icon,omitempty" json:"icon,omitempty"`
	Nav        bool            `yaml:"nav,omitempty" json:"nav,omitempty"`
}

// RouteTable is the console's route-to-capability mapping
type RouteTable struct {
	Landing  string         `yaml:"landing"`
	Unmapped UnmappedPolicy `yaml:"unmapped"`
	Public   []string       `yaml:"public"`
	Routes   []Route        `yaml:"routes"`
}

// DefaultRouteTable returns the embedded route table
func DefaultRouteTable() *RouteTable {
	t, err := ParseRouteTable(defaultRoutesYAML)
	if err != nil {
		panic(fmt.Sprintf("viewgate: embedded route table is invalid: %v", err))
	}
	return t
}

// LoadRouteTable reads a route table from a YAML file
func LoadRouteTable(filename string) (*RouteTable, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseRouteTable(data)
}

// ParseRouteTable parses and validates a YAML route table
func ParseRouteTable(data []byte) (*RouteTable, error) {
	var t RouteTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if t.Landing == "" {
		t.Landing = "/"
	}
	if t.Unmapped == "" {
		t.Unmapped = UnmappedDeny
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that the table is self-consistent
func (t *RouteTable) Validate() error {
	if t.Unmapped != UnmappedDeny && t.Unmapped != UnmappedAllow {
		return fmt.Errorf("unmapped policy must be %q or %q, got %q", UnmappedDeny, UnmappedAllow, t.Unmapped)
	}

	known := make(map[rbac.Capability]bool)
	for _, c := range rbac.AllCapabilities() {
		known[c] = true
	}

	seen := make(map[string]bool)
	for _, r := range t.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		if !known[r.Capability] {
			return fmt.Errorf("route %s references unknown capability %q", r.Prefix, r.Capability)
		}
		clean := cleanPath(r.Prefix)
		if seen[clean] {
			return fmt.Errorf("route %s is declared twice", r.Prefix)
		}
		seen[clean] = true
	}

	if !t.isPublic(cleanPath(t.Landing)) {
		return fmt.Errorf("landing route %s must be public", t.Landing)
	}
	return nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// hasSegmentPrefix reports whether p equals prefix or continues it at a segment boundary
func hasSegmentPrefix(p, prefix string) bool {
	if prefix == "/" {
		return p == "/"
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func (t *RouteTable) isPublic(p string) bool {
	for _, pub := range t.Public {
		if hasSegmentPrefix(p, cleanPath(pub)) {
			return true
		}
	}
	return false
}

// Match returns the most specific route covering the path
func (t *RouteTable) Match(p string) (Route, bool) {
	p = cleanPath(p)
	var best Route
	found := false
	for _, r := range t.Routes {
		prefix := cleanPath(r.Prefix)
		if hasSegmentPrefix(p, prefix) && (!found || len(prefix) > len(cleanPath(best.Prefix))) {
			best = r
			found = true
		}
	}
	return best, found
}

// CanActivate decides whether role may open the path
func (t *RouteTable) CanActivate(role rbac.Role, p string) bool {
	p = cleanPath(p)
	if route, ok := t.Match(p); ok {
		return rbac.Allowed(role, route.Capability)
	}
	if t.isPublic(p) {
		return true
	}
	return t.Unmapped == UnmappedAllow
}

// Routes holds the current route table and allows it to be swapped at runtime
type Routes struct {
	table atomic.Pointer[RouteTable]
}

// NewRoutes creates a holder with an initial table
func NewRoutes(t *RouteTable) *Routes {
	r := &Routes{}
	r.table.Store(t)
	return r
}

// Load returns the current table
func (r *Routes) Load() *RouteTable {
	return r.table.Load()
}

// Store replaces the current table
func (r *Routes) Store(t *RouteTable) {
	r.table.Store(t)
}
