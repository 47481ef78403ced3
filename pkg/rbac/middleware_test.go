package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerRole(r *http.Request) (Role, bool) {
	v := r.Header.Get("X-Test-Role")
	if v == "" {
		return "", false
	}
	return Role(v), true
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireCapability(t *testing.T) {
	type recorded struct {
		capability Capability
		allowed    bool
	}
	var decisions []recorded
	mw := NewCapabilityMiddleware(headerRole, func(c Capability, allowed bool) {
		decisions = append(decisions, recorded{c, allowed})
	})
	handler := mw.RequireCapability(CapAccessUsers)(okHandler())

	tests := []struct {
		name   string
		role   string
		status int
	}{
		{"no session", "", http.StatusUnauthorized},
		{"allowed", string(RoleCompanyManager), http.StatusOK},
		{"denied", string(RoleComplianceAuditor), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/users", nil)
			if tt.role != "" {
				req.Header.Set("X-Test-Role", tt.role)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	assert.Equal(t, []recorded{
		{CapAccessUsers, true},
		{CapAccessUsers, false},
	}, decisions)
}

func TestRequireCapability_DeniedBody(t *testing.T) {
	mw := NewCapabilityMiddleware(headerRole, nil)
	handler := mw.RequireCapability(CapAccessAdminArea)(okHandler())

	req := httptest.NewRequest("GET", "/api/admin", nil)
	req.Header.Set("X-Test-Role", string(RoleDeveloperExternal))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "access-admin-area", body["capability"])
	assert.Equal(t, DisabledReason(RoleDeveloperExternal, CapAccessAdminArea), body["reason"])
}

func TestRequireAnyCapability(t *testing.T) {
	mw := NewCapabilityMiddleware(headerRole, nil)
	handler := mw.RequireAnyCapability(CapAccessAdminArea, CapAccessCompliance)(okHandler())

	req := httptest.NewRequest("GET", "/api/audit", nil)
	req.Header.Set("X-Test-Role", string(RoleComplianceAuditor))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest("GET", "/api/audit", nil)
	req.Header.Set("X-Test-Role", string(RoleBusinessViewer))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlers(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers(headerRole).RegisterRoutes(router)

	t.Run("roles", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/roles", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string][]RoleInfo
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Len(t, body["console"], 7)
		assert.Len(t, body["directory"], 7)
	})

	t.Run("capabilities", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/capabilities", nil)
		req.Header.Set("X-Test-Role", string(RoleBusinessViewer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Role         Role                 `json:"role"`
			Capabilities []Decision           `json:"capabilities"`
			ReadOnly     map[EntityClass]bool `json:"read_only"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, RoleBusinessViewer, body.Role)
		assert.Len(t, body.Capabilities, len(AllCapabilities()))
		assert.True(t, body.ReadOnly[EntityUsers])
	})

	t.Run("capabilities without session", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/capabilities", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
