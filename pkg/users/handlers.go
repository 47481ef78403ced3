package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

// Handlers serves the user directory API
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates user handlers
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers user routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users", h.listUsers).Methods("GET")
	router.HandleFunc("/api/users/invite", h.inviteUser).Methods("POST")
	router.HandleFunc("/api/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/api/users/{id}", h.updateUser).Methods("PATCH")
	router.HandleFunc("/api/users/{id}/roles", h.updateRoles).Methods("PUT")
	router.HandleFunc("/api/users/{id}/status", h.setStatus).Methods("POST")
	router.HandleFunc("/api/users/{id}/activate", h.activateUser).Methods("POST")
	router.HandleFunc("/api/users/{id}/resend-invite", h.resendInvite).Methods("POST")
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).WithError(err).Warn("user request failed")
	httputil.WriteAppError(w, err)
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		CompanyID: q.Get("company_id"),
		Role:      rbac.Role(q.Get("role")),
		Query:     q.Get("q"),
		SortBy:    SortField(q.Get("sort")),
		SortDesc:  q.Get("order") == "desc",
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httputil.WriteBadRequest(w, "unknown status: "+raw)
			return
		}
		filter.Status = status
	}
	page, err := httputil.ParsePage(r, 0, 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Limit, filter.Offset = page.Limit, page.Offset

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": list, "count": len(list)})
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

func (h *Handlers) inviteUser(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.NonEmpty("email", req.Email)) {
		return
	}
	u, err := h.service.Invite(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteCreated(w, u)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	u, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

type rolesRequest struct {
	Roles []rbac.Role `json:"roles"`
}

func (h *Handlers) updateRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req rolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	u, err := h.service.UpdateRoles(r.Context(), id, req.Roles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		httputil.WriteBadRequest(w, "unknown status: "+req.Status)
		return
	}
	u, err := h.service.SetStatus(r.Context(), id, status, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

func (h *Handlers) activateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	u, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

func (h *Handlers) resendInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	u, err := h.service.ResendInvite(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, u)
}
