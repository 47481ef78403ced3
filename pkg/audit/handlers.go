package audit

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Handlers serves the audit log API
type Handlers struct {
	store  Store
	logger *observability.Logger
}

// NewHandlers creates audit handlers
func NewHandlers(store Store, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers audit routes. Callers wrap the router with the compliance
// capability check.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/audit", h.listEvents).Methods("GET")
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	a, ok := actor.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "no session")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.CompanyID = a.Scope.Constrain(filter.CompanyID)

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("failed to search audit events")
		httputil.WriteAppError(w, err)
		return
	}

	format := ExportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		httputil.WriteSuccess(w, map[string]interface{}{
			"events": nonNil(events),
			"count":  len(events),
		})
		return
	}

	data, err := Export(events, format)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-log.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-log.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-log.json")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func parseFilter(r *http.Request) (SearchFilter, error) {
	q := r.URL.Query()
	filter := SearchFilter{
		CompanyID:   q.Get("company_id"),
		ActorUserID: q.Get("actor_id"),
		TargetType:  TargetType(q.Get("target_type")),
		TargetID:    q.Get("target_id"),
	}
	for _, a := range strings.Split(q.Get("action"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			filter.Actions = append(filter.Actions, Action(a))
		}
	}

	var err error
	if filter.Since, err = httputil.ParseQueryTime(r, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = httputil.ParseQueryTime(r, "until"); err != nil {
		return filter, err
	}
	page, err := httputil.ParsePage(r, defaultPageSize, maxPageSize)
	if err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return filter, nil
}

func nonNil(events []*Event) []*Event {
	if events == nil {
		return []*Event{}
	}
	return events
}
