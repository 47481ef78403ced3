package rbac

import (
	"net/http"

	"github.com/platinummonkey/integrationhub/pkg/httputil"
)

// RoleFunc resolves the current console role of a request
type RoleFunc func(r *http.Request) (Role, bool)

// DecisionRecorder observes policy decisions, typically for metrics
type DecisionRecorder func(capability Capability, allowed bool)

// CapabilityMiddleware enforces capabilities on HTTP routes
type CapabilityMiddleware struct {
	roleOf RoleFunc
	record DecisionRecorder
}

// NewCapabilityMiddleware creates a new capability middleware
func NewCapabilityMiddleware(roleOf RoleFunc, record DecisionRecorder) *CapabilityMiddleware {
	return &CapabilityMiddleware{
		roleOf: roleOf,
		record: record,
	}
}

// deniedResponse is the body of a 403 caused by a missing capability
type deniedResponse struct {
	Error      string     `json:"error"`
	Capability Capability `json:"capability"`
	Reason     string     `json:"reason"`
}

// RequireCapability creates middleware that requires the current role to hold the capability
func (m *CapabilityMiddleware) RequireCapability(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := m.roleOf(r)
			if !ok {
				httputil.WriteUnauthorized(w, "Session required")
				return
			}

			allowed := Allowed(role, capability)
			if m.record != nil {
				m.record(capability, allowed)
			}
			if !allowed {
				httputil.WriteJSON(w, http.StatusForbidden, deniedResponse{
					Error:      "Insufficient permissions",
					Capability: capability,
					Reason:     DisabledReason(role, capability),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyCapability creates middleware that requires at least one of the capabilities
func (m *CapabilityMiddleware) RequireAnyCapability(capabilities ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := m.roleOf(r)
			if !ok {
				httputil.WriteUnauthorized(w, "Session required")
				return
			}

			for _, c := range capabilities {
				if Allowed(role, c) {
					if m.record != nil {
						m.record(c, true)
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			var first Capability
			if len(capabilities) > 0 {
				first = capabilities[0]
				if m.record != nil {
					m.record(first, false)
				}
			}
			httputil.WriteJSON(w, http.StatusForbidden, deniedResponse{
				Error:      "Insufficient permissions",
				Capability: first,
				Reason:     DisabledReason(role, first),
			})
		})
	}
}
