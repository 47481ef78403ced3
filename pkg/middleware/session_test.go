package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/contextkeys"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
)

func newSessionMiddleware(t *testing.T) (*SessionMiddleware, *session.State, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	state := session.NewState(session.DevIdentity(), rbac.RoleSystemAdministrator, rbac.RoleBusinessViewer, logger)

	lookup := func(r *http.Request) (Session, bool) {
		if r.Header.Get("X-Hub-Session") != "s-1" {
			return Session{}, false
		}
		identity := state.CurrentIdentity()
		role := state.CurrentRole()
		return Session{
			ID:    "s-1",
			State: state,
			Actor: actor.New(identity, role, scope.Of(identity, role)),
		}, true
	}
	return NewSessionMiddleware(lookup, logger), state, &buf
}

func TestSessionMiddleware_Handler(t *testing.T) {
	m, state, buf := newSessionMiddleware(t)

	var (
		got       actor.Actor
		hasActor  bool
		sessionID string
		attached  *session.State
	)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, hasActor = actor.FromContext(r.Context())
		sessionID = contextkeys.GetSessionID(r.Context())
		attached, _ = SessionFromContext(r)
		observability.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("X-Hub-Session", "s-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, hasActor)
	assert.Equal(t, "dev-admin", got.ID)
	assert.Equal(t, rbac.RoleSystemAdministrator, got.Role)
	assert.True(t, got.Scope.IsGlobal())
	assert.Equal(t, "s-1", sessionID)
	assert.Same(t, state, attached)
	assert.Contains(t, buf.String(), `"session_id":"s-1"`)
	assert.Contains(t, buf.String(), `"user_id":"dev-admin"`)

	// no session passes through without an actor
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, hasActor)
	assert.Empty(t, sessionID)
}

func TestSessionMiddleware_Require(t *testing.T) {
	m, _, _ := newSessionMiddleware(t)

	called := false
	handler := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := actor.FromContext(r.Context())
		assert.True(t, ok)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-Hub-Session", "s-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestSessionMiddleware_ActorFollowsRoleSwitch(t *testing.T) {
	m, state, _ := newSessionMiddleware(t)

	var role rbac.Role
	handler := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := actor.FromContext(r.Context())
		role = a.Role
	}))

	state.SwitchRole(rbac.RoleComplianceAuditor)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("X-Hub-Session", "s-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, rbac.RoleComplianceAuditor, role)
}
