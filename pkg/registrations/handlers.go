package registrations

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

// Handlers serves the registration API
type Handlers struct {
	service *Service
}

// NewHandlers creates registration handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterPublicRoutes registers the routes that need no session
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/api/registrations", h.submit).Methods("POST")
}

// RegisterRoutes registers the review routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/registrations", h.list).Methods("GET")
	router.HandleFunc("/api/registrations/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/registrations/{id}/approve", h.approve).Methods("POST")
	router.HandleFunc("/api/registrations/{id}/reject", h.reject).Methods("POST")
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).WithError(err).Warn("registration request failed")
	httputil.WriteAppError(w, err)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.NonEmpty("company_name", req.CompanyName),
		httputil.NonEmpty("email", req.Email),
	) {
		return
	}
	reg, err := h.service.Submit(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteCreated(w, reg)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("status"); raw != "" {
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
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"registrations": list, "count": len(list)})
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	reg, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, reg)
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	reg, err := h.service.Approve(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, reg)
}

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handlers) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	reg, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, reg)
}
