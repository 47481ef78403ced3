package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/middleware"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/registrations"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
	"github.com/platinummonkey/integrationhub/pkg/users"
	"github.com/platinummonkey/integrationhub/pkg/viewgate"
)

// Deps are the services the API serves
type Deps struct {
	Users         *users.Service
	Companies     *companies.Service
	Registrations *registrations.Service
	Audit         audit.Store
	Identity      session.IdentitySource
	Resolver      *scope.Resolver
	Routes        *viewgate.Routes
	Metrics       *observability.Metrics
	Logger        *observability.Logger
}

// Options tune the HTTP surface
type Options struct {
	MaxSessions  int
	IdleTimeout  time.Duration
	DefaultRole  rbac.Role
	SearchQuiet  time.Duration
	MaxBodyBytes int64
	CORSOrigins  []string
	// RateLimit wraps every request once the session is attached. Nil disables limiting.
	RateLimit func(http.Handler) http.Handler
	// Tracing wraps the handler with otelhttp spans
	Tracing bool
	// AssignedRolesOnly limits role switches to the roles the identity source
	// assigned. When false any console role can be selected.
	AssignedRolesOnly bool
}

// DefaultOptions returns the options used for unset fields
func DefaultOptions() Options {
	return Options{
		MaxSessions:  1000,
		IdleTimeout:  30 * time.Minute,
		DefaultRole:  rbac.RoleBusinessViewer,
		SearchQuiet:  150 * time.Millisecond,
		MaxBodyBytes: 1 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSessions <= 0 {
		o.MaxSessions = d.MaxSessions
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if !rbac.ConsoleCatalog().Contains(o.DefaultRole) {
		o.DefaultRole = d.DefaultRole
	}
	if o.SearchQuiet <= 0 {
		o.SearchQuiet = d.SearchQuiet
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = d.MaxBodyBytes
	}
	return o
}

// Server is the console's HTTP API
type Server struct {
	router   *mux.Router
	handler  http.Handler
	consoles *session.Registry[*Console]
	sessions *middleware.SessionMiddleware

	identity      session.IdentitySource
	resolver      *scope.Resolver
	routes        *viewgate.Routes
	users         *users.Service
	companies     *companies.Service
	registrations *registrations.Service
	audit         audit.Store
	metrics       *observability.Metrics
	logger        *observability.Logger
	opts          Options
}

// NewServer creates the API server and its session registry
func NewServer(deps Deps, opts Options) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		identity:      deps.Identity,
		resolver:      deps.Resolver,
		routes:        deps.Routes,
		users:         deps.Users,
		companies:     deps.Companies,
		registrations: deps.Registrations,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		opts:          opts.withDefaults(),
	}
	if s.identity == nil {
		s.identity = session.NewDevSource(session.Identity{})
	}
	if s.routes == nil {
		s.routes = viewgate.NewRoutes(viewgate.DefaultRouteTable())
	}
	if s.resolver == nil {
		var directory scope.CompanyDirectory
		if deps.Companies != nil {
			directory = deps.Companies
		}
		s.resolver = scope.NewResolver(directory, 256, 5*time.Minute)
	}

	s.consoles = session.NewRegistry(s.opts.MaxSessions, s.opts.IdleTimeout, func(id string, c *Console) {
		c.close()
		s.logger.WithField("session_id", id).Debug("console session closed")
	})
	s.sessions = middleware.NewSessionMiddleware(s.lookupSession, s.logger)

	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	capabilities := rbac.NewCapabilityMiddleware(s.roleOf, func(c rbac.Capability, allowed bool) {
		s.metrics.RecordPolicyDecision(string(c), allowed)
	})

	// Routes that need no session
	s.router.HandleFunc("/api/session", s.openSession).Methods("POST")
	if s.registrations != nil {
		registrations.NewHandlers(s.registrations).RegisterPublicRoutes(s.router)
	}
	rbac.NewHandlers(s.roleOf).RegisterRoutes(s.router)

	console := s.router.NewRoute().Subrouter()
	console.Use(s.sessions.Require)
	console.HandleFunc("/api/session", s.getSession).Methods("GET")
	console.HandleFunc("/api/session", s.closeSession).Methods("DELETE")
	console.HandleFunc("/api/session/role", s.switchRole).Methods("POST")
	console.HandleFunc("/api/session/navigate", s.navigate).Methods("POST")
	console.HandleFunc("/api/affordances/{entity}", s.affordances).Methods("GET")

	if s.users != nil {
		sub := console.NewRoute().Subrouter()
		sub.Use(capabilities.RequireCapability(rbac.CapAccessUsers))
		users.NewHandlers(s.users, s.logger).RegisterRoutes(sub)
		sub.HandleFunc("/api/users/{id}/actions", s.userActions).Methods("GET")
		sub.HandleFunc("/api/search/users", s.searchUsersInput).Methods("POST")
		sub.HandleFunc("/api/search/users", s.searchUsersResult).Methods("GET")
	}
	if s.companies != nil {
		sub := console.NewRoute().Subrouter()
		sub.Use(capabilities.RequireCapability(rbac.CapAccessCompanies))
		companies.NewHandlers(s.companies).RegisterRoutes(sub)
	}
	if s.registrations != nil {
		sub := console.NewRoute().Subrouter()
		sub.Use(capabilities.RequireCapability(rbac.CapAccessAdminArea))
		registrations.NewHandlers(s.registrations).RegisterRoutes(sub)
	}
	if s.audit != nil {
		sub := console.NewRoute().Subrouter()
		sub.Use(capabilities.RequireCapability(rbac.CapAccessCompliance))
		audit.NewHandlers(s.audit, s.logger).RegisterRoutes(sub)
	}
}

// buildHandler wraps the router with the request middleware, outermost first
func (s *Server) buildHandler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	}
	if s.opts.Tracing {
		chain = append(chain, func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "integrationhub.api")
		})
	}
	if len(s.opts.CORSOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.opts.CORSOrigins))
	}
	chain = append(chain,
		httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes),
		s.sessions.Handler,
	)
	if s.opts.RateLimit != nil {
		chain = append(chain, s.opts.RateLimit)
	}
	return httputil.Chain(chain...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions returns the number of open console sessions
func (s *Server) Sessions() int {
	return s.consoles.Len()
}

// Routes returns the live route table holder, for hot reloads
func (s *Server) Routes() *viewgate.Routes {
	return s.routes
}

// Reroute sends every open console whose current route the live table denies to the
// landing route. It returns how many consoles were moved.
func (s *Server) Reroute() int {
	moved := 0
	for _, c := range s.consoles.Values() {
		if to, ok := c.revalidate(); ok {
			moved++
			s.logger.WithFields(map[string]interface{}{
				"session_id": c.ID,
				"to":         to,
			}).Debug("console rerouted")
		}
	}
	return moved
}
