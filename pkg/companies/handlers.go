package companies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

// Handlers serves the company API
type Handlers struct {
	service *Service
}

// NewHandlers creates company handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers company routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/companies", h.listCompanies).Methods("GET")
	router.HandleFunc("/api/companies", h.createCompany).Methods("POST")
	router.HandleFunc("/api/companies/{id}", h.getCompany).Methods("GET")
	router.HandleFunc("/api/companies/{id}", h.updateCompany).Methods("PATCH")
	router.HandleFunc("/api/companies/{id}", h.deleteCompany).Methods("DELETE")
	router.HandleFunc("/api/companies/{id}/status", h.setStatus).Methods("POST")
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	observability.FromContext(r.Context()).WithError(err).Warn("company request failed")
	httputil.WriteAppError(w, err)
}

func (h *Handlers) listCompanies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Query:    q.Get("q"),
		SortBy:   SortField(q.Get("sort")),
		SortDesc: q.Get("order") == "desc",
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httputil.WriteBadRequest(w, "unknown status: "+raw)
			return
		}
		filter.Status = status
	}
	if q.Get("vendor") != "" {
		vendor, err := httputil.ParseQueryBool(r, "vendor", false)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		filter.IsVendor = &vendor
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
	httputil.WriteSuccess(w, map[string]interface{}{"companies": list, "count": len(list)})
}

func (h *Handlers) getCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (h *Handlers) createCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.NonEmpty("name", req.Name)) {
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

func (h *Handlers) updateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (h *Handlers) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type statusRequest struct {
	Status string `json:"status"`
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
	c, err := h.service.SetStatus(r.Context(), id, status)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}
