package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/contextkeys"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
	"github.com/platinummonkey/integrationhub/pkg/viewgate"
)

// SessionView is the console state returned by the session endpoints
type SessionView struct {
	ID            string             `json:"id"`
	Identity      session.Identity   `json:"identity"`
	Role          rbac.Role          `json:"role"`
	AssignedRoles []rbac.Role        `json:"assigned_roles"`
	Scope         scope.Scope        `json:"scope"`
	Catalog       []rbac.RoleInfo    `json:"catalog"`
	Navigation    []viewgate.NavItem `json:"navigation"`
	CurrentPath   string             `json:"current_path"`
	Landing       string             `json:"landing"`
	// Redirect is the route a role switch or a denied navigation moved the console to
	Redirect string `json:"redirect,omitempty"`
}

func (s *Server) view(r *http.Request, c *Console) SessionView {
	identity := c.State.CurrentIdentity()
	role := c.State.CurrentRole()
	return SessionView{
		ID:            c.ID,
		Identity:      identity,
		Role:          role,
		AssignedRoles: c.State.AssignedRoles(),
		Scope:         s.resolver.Resolve(r.Context(), identity, role),
		Catalog:       rbac.ConsoleCatalog().List(),
		Navigation:    c.Gate.Navigation(),
		CurrentPath:   c.Gate.CurrentPath(),
		Landing:       c.Gate.Landing(),
	}
}

// requestConsole returns the console attached by the session middleware
func (s *Server) requestConsole(w http.ResponseWriter, r *http.Request) (*Console, bool) {
	c, ok := s.consoles.Get(contextkeys.GetSessionID(r.Context()))
	if !ok {
		httputil.WriteUnauthorized(w, "Session required")
		return nil, false
	}
	return c, true
}

// openSession handles POST /api/session
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity.Identify(r)
	if err != nil {
		logger := observability.FromContext(r.Context()).WithError(err)
		if errors.Is(err, session.ErrNoCredentials) {
			logger.Debug("session requested without credentials")
		} else {
			logger.Warn("failed to identify session request")
		}
		httputil.WriteUnauthorized(w, "Unable to establish identity")
		return
	}

	id, c, err := s.consoles.Create(func(id string) (*Console, error) {
		return s.newConsole(id, identity)
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.metrics.SetActiveSessions(s.consoles.Len())

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"session_id": id,
		"identity":   identity.ID,
		"role":       string(c.State.CurrentRole()),
	}).Info("console session opened")

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionHeader, id)
	httputil.WriteCreated(w, s.view(r, c))
}

// getSession handles GET /api/session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, s.view(r, c))
}

// closeSession handles DELETE /api/session
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id := contextkeys.GetSessionID(r.Context())
	s.consoles.Remove(id)
	s.metrics.SetActiveSessions(s.consoles.Len())

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.WriteNoContent(w)
}

type switchRoleRequest struct {
	Role string `json:"role"`
}

// switchRole handles POST /api/session/role
func (s *Server) switchRole(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}

	var req switchRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.NonEmpty("role", req.Role)) {
		return
	}
	role, ok := rbac.ConsoleCatalog().Parse(req.Role)
	if !ok {
		httputil.WriteBadRequest(w, "unknown role: "+req.Role)
		return
	}
	if !c.State.CanSwitchTo(role) {
		observability.FromContext(r.Context()).WithField("role", string(role)).
			Warn("refusing switch to unassigned role")
		httputil.WriteForbidden(w, "role not assigned: "+req.Role)
		return
	}

	redirect := c.SwitchRole(role)
	s.metrics.RecordRoleSwitch(string(role))

	v := s.view(r, c)
	v.Redirect = redirect
	httputil.WriteSuccess(w, v)
}

type navigateRequest struct {
	Path string `json:"path"`
}

// navigate handles POST /api/session/navigate
func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}

	var req navigateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.NonEmpty("path", req.Path)) {
		return
	}

	shown, allowed := c.Navigate(req.Path)
	v := s.view(r, c)
	if !allowed {
		v.Redirect = shown
		observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"path":  req.Path,
			"shown": shown,
		}).Debug("navigation denied")
		httputil.WriteJSON(w, http.StatusForbidden, v)
		return
	}
	httputil.WriteSuccess(w, v)
}

// affordances handles GET /api/affordances/{entity}
func (s *Server) affordances(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}
	entity, ok := httputil.ParsePathStringOrError(w, r, "entity")
	if !ok {
		return
	}

	class, ok := parseEntityClass(entity)
	if !ok {
		httputil.WriteNotFound(w, "unknown entity: "+entity)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"entity":      class,
		"role":        c.State.CurrentRole(),
		"read_only":   rbac.ReadOnly(c.State.CurrentRole(), class),
		"affordances": c.Gate.Affordances(class),
	})
}

func parseEntityClass(raw string) (rbac.EntityClass, bool) {
	for _, class := range rbac.AllEntityClasses() {
		if string(class) == raw {
			return class, true
		}
	}
	return "", false
}

func invalidFilter(key, value string) error {
	return apperr.Invalid("unknown %s filter %q", key, value)
}
