package rbac

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/integrationhub/pkg/httputil"
)

// Handlers provides HTTP handlers for catalog and policy lookups
type Handlers struct {
	roleOf RoleFunc
}

// NewHandlers creates new RBAC handlers
func NewHandlers(roleOf RoleFunc) *Handlers {
	return &Handlers{roleOf: roleOf}
}

// RegisterRoutes registers RBAC routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/roles", h.listRoles).Methods("GET")
	router.HandleFunc("/api/capabilities", h.capabilities).Methods("GET")
}

// listRoles handles GET /api/roles
func (h *Handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"console":   ConsoleCatalog().List(),
		"directory": DirectoryCatalog().List(),
	})
}

// capabilities handles GET /api/capabilities
func (h *Handlers) capabilities(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleOf(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Session required")
		return
	}

	readOnly := make(map[EntityClass]bool)
	for _, class := range AllEntityClasses() {
		readOnly[class] = ReadOnly(role, class)
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"role":         role,
		"capabilities": Evaluate(role),
		"read_only":    readOnly,
	})
}
