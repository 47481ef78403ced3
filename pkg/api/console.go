package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/middleware"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/search"
	"github.com/platinummonkey/integrationhub/pkg/session"
	"github.com/platinummonkey/integrationhub/pkg/users"
	"github.com/platinummonkey/integrationhub/pkg/viewgate"
)

// Session transport
const (
	SessionHeader = "X-Hub-Session"
	SessionCookie = "hub_session"
)

// userSearchFilters are the key:value filters the user search box understands
var userSearchFilters = []string{"status", "role", "company"}

// Console is the server side of one open console: the session, its view gate and the
// pages' live searches
type Console struct {
	ID    string
	State *session.State
	Gate  *viewgate.Gate
	Nav   *viewgate.MemoryNavigator

	// mu serializes role switches and navigation so a redirect is reported to the
	// request that caused it
	mu       sync.Mutex
	redirect string

	// searchMu guards userSearch, which is replaced on every role change. Role change
	// subscribers run while mu is held, so this lock is separate.
	searchMu    sync.Mutex
	userSearch  *search.Live[[]users.User]
	unsubscribe func()
}

func (s *Server) newConsole(id string, identity session.Identity) (*Console, error) {
	logger := s.logger.WithField("session_id", id)
	var opts []session.StateOption
	if s.opts.AssignedRolesOnly {
		opts = append(opts, session.WithAssignedRolesOnly())
	}
	state := session.NewState(identity, session.StartingRole(identity, s.opts.DefaultRole), s.opts.DefaultRole, logger, opts...)
	nav := viewgate.NewMemoryNavigator(s.routes.Load().Landing)

	c := &Console{ID: id, State: state, Nav: nav}
	c.Gate = viewgate.NewGate(state, nav, s.routes, logger, viewgate.WithRedirectHook(func(from, to string) {
		c.redirect = to
		s.metrics.RecordRedirect()
	}))
	c.userSearch = c.newUserSearch(s)
	c.unsubscribe = state.Subscribe(func(change session.Change) {
		c.resetUserSearch(s)
		logger.WithField("role", string(change.Current)).Debug("user search reset")
	})
	return c, nil
}

// newUserSearch creates the console's live user search. The actor is resolved from
// the console when a query fires, so input typed under one role never runs as another.
func (c *Console) newUserSearch(s *Server) *search.Live[[]users.User] {
	return search.NewLive(s.opts.SearchQuiet, func(ctx context.Context, raw string) ([]users.User, error) {
		identity := c.State.CurrentIdentity()
		role := c.State.CurrentRole()
		a := actor.New(identity, role, s.resolver.Resolve(ctx, identity, role))
		return s.searchUsers(actor.WithActor(ctx, a), raw)
	})
}

// resetUserSearch drops the pending input and the settled result
func (c *Console) resetUserSearch(s *Server) {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	c.userSearch.Close()
	c.userSearch = c.newUserSearch(s)
}

// UserSearch returns the live user search of the current role
func (c *Console) UserSearch() *search.Live[[]users.User] {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	return c.userSearch
}

// SwitchRole changes the console's role and returns the route it was redirected to,
// or "" when the current route stays accessible
func (c *Console) SwitchRole(role rbac.Role) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.redirect = ""
	c.State.SwitchRole(role)
	return c.redirect
}

// revalidate redirects the console to landing when the route table no longer lets it
// show the current route
func (c *Console) revalidate() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Gate.Revalidate()
}

// Navigate moves the console to path and reports the route shown afterwards
func (c *Console) Navigate(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Gate.Navigate(path)
}

func (c *Console) close() {
	c.unsubscribe()
	c.Gate.Close()
	c.UserSearch().Close()
}

// sessionID reads the session id from the header, then the cookie
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// console returns the open console a request belongs to
func (s *Server) console(r *http.Request) (*Console, bool) {
	id := sessionID(r)
	if id == "" {
		return nil, false
	}
	return s.consoles.Get(id)
}

// lookupSession resolves the request's console and the actor it acts as
func (s *Server) lookupSession(r *http.Request) (middleware.Session, bool) {
	c, ok := s.console(r)
	if !ok {
		return middleware.Session{}, false
	}
	identity := c.State.CurrentIdentity()
	role := c.State.CurrentRole()
	sc := s.resolver.Resolve(r.Context(), identity, role)
	return middleware.Session{
		ID:    c.ID,
		State: c.State,
		Actor: actor.New(identity, role, sc),
	}, true
}

// roleOf returns the role of the request's session
func (s *Server) roleOf(r *http.Request) (rbac.Role, bool) {
	if a, ok := actor.FromContext(r.Context()); ok {
		return a.Role, true
	}
	c, ok := s.console(r)
	if !ok {
		return "", false
	}
	return c.State.CurrentRole(), true
}

// searchUsers runs one live user search. The actor in ctx constrains it to the
// caller's scope.
func (s *Server) searchUsers(ctx context.Context, raw string) ([]users.User, error) {
	q := search.ParseQuery(raw, userSearchFilters...)
	filter := users.Filter{Query: q.Text()}
	if v, ok := q.Get("status"); ok {
		status, ok := users.ParseStatus(v)
		if !ok {
			return nil, invalidFilter("status", v)
		}
		filter.Status = status
	}
	if v, ok := q.Get("role"); ok {
		role, ok := rbac.DirectoryCatalog().Parse(v)
		if !ok {
			return nil, invalidFilter("role", v)
		}
		filter.Role = role
	}
	if v, ok := q.Get("company"); ok {
		filter.CompanyID = v
	}

	start := time.Now()
	list, err := s.users.List(ctx, filter)
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"query":       raw,
		"results":     len(list),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("user search settled")
	return list, err
}
