package api

import (
	"net/http"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/search"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

// userActions handles GET /api/users/{id}/actions
func (s *Server) userActions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	others, err := s.users.OtherActiveAdmins(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id": u.ID,
		"actions": c.Gate.UserRowActions(u, others),
	})
}

type searchRequest struct {
	Query string `json:"query"`
	// Flush runs the query now instead of after the quiet period
	Flush bool `json:"flush"`
}

// searchUsersInput handles POST /api/search/users. Each call replaces the pending input;
// only the latest settles.
func (s *Server) searchUsersInput(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	live := c.UserSearch()
	live.Input(r.Context(), req.Query)
	if req.Flush {
		live.Flush()
	}
	httputil.WriteJSON(w, http.StatusAccepted, searchView(live.Result()))
}

// searchUsersResult handles GET /api/search/users
func (s *Server) searchUsersResult(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requestConsole(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, searchView(c.UserSearch().Result()))
}

type searchResponse struct {
	Query   string       `json:"query"`
	Users   []users.User `json:"users"`
	Count   int          `json:"count"`
	Loading bool         `json:"loading"`
	Pending bool         `json:"pending"`
	Error   string       `json:"error,omitempty"`
}

func searchView(res search.LiveResult[[]users.User]) searchResponse {
	out := searchResponse{
		Query:   res.Query,
		Users:   res.Value,
		Count:   len(res.Value),
		Loading: res.Loading,
		Pending: res.Pending,
	}
	if out.Users == nil {
		out.Users = []users.User{}
	}
	if res.Err != nil {
		out.Error = apperr.UserMessage(res.Err)
	}
	return out
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.WithTraceContext(r.Context(), observability.FromContext(r.Context()))
	logger.WithError(err).Warn("console request failed")
	httputil.WriteAppError(w, err)
}
