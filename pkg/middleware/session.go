package middleware

import (
	"net/http"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/contextkeys"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/session"
)

// Session is a console session resolved for one request
type Session struct {
	ID    string
	State *session.State
	Actor actor.Actor
}

// SessionLookup finds the console session a request belongs to
type SessionLookup func(r *http.Request) (Session, bool)

// SessionMiddleware attaches the acting session to request contexts
type SessionMiddleware struct {
	lookup SessionLookup
	logger *observability.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(lookup SessionLookup, logger *observability.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		lookup: lookup,
		logger: logger,
	}
}

// Handler attaches the session when one is found and passes every request on
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := m.lookup(r); ok {
			r = m.attach(r, s)
		}
		next.ServeHTTP(w, r)
	})
}

// Require attaches the session and rejects requests without one
func (m *SessionMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := m.lookup(r)
		if !ok {
			httputil.WriteUnauthorized(w, "Session required")
			return
		}
		next.ServeHTTP(w, m.attach(r, s))
	})
}

func (m *SessionMiddleware) attach(r *http.Request, s Session) *http.Request {
	ctx := r.Context()
	ctx = contextkeys.WithSessionID(ctx, s.ID)
	ctx = contextkeys.WithSession(ctx, s.State)
	ctx = actor.WithActor(ctx, s.Actor)

	logger := m.logger
	if l, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
		logger = l
	}
	if logger != nil {
		ctx = observability.WithLogger(ctx, logger.WithFields(map[string]interface{}{
			"session_id": s.ID,
			"role":       string(s.Actor.Role),
		}))
	}
	return r.WithContext(ctx)
}

// SessionFromContext returns the session state attached by SessionMiddleware
func SessionFromContext(r *http.Request) (*session.State, bool) {
	s, ok := r.Context().Value(contextkeys.SessionKey).(*session.State)
	return s, ok && s != nil
}
