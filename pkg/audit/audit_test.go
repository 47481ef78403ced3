package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func adminCtx() context.Context {
	return actor.WithActor(context.Background(), actor.Actor{
		ID:    "u-admin",
		Role:  rbac.RoleSystemAdministrator,
		Scope: scope.Scope{Kind: scope.Global},
	})
}

func managerCtx(companyID string) context.Context {
	return actor.WithActor(context.Background(), actor.Actor{
		ID:    "u-manager",
		Role:  rbac.RoleCompanyManager,
		Scope: scope.Scope{Kind: scope.Tenant, CompanyID: companyID},
	})
}

type failingLogger struct {
	calls int
}

func (f *failingLogger) Log(ctx context.Context, event *Event) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingLogger) Close() error { return nil }

type failingStore struct{}

func (failingStore) Append(ctx context.Context, event *Event) error {
	return errors.New("store down")
}

func (failingStore) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return nil, errors.New("store down")
}

func TestRecorder_RecordsActor(t *testing.T) {
	store := NewMemoryStore()
	var recorded []string
	rec := NewRecorder(store, testLogger(),
		WithRecordHook(func(action string) { recorded = append(recorded, action) }),
		WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))),
	)

	event := rec.Record(adminCtx(), Entry{
		Action:     ActionUserSuspend,
		TargetType: TargetUser,
		TargetID:   "u-1",
		CompanyID:  "c-1",
		Metadata:   map[string]interface{}{"reason": "policy"},
	})

	require.NotNil(t, event)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "u-admin", event.ActorUserID)
	assert.Equal(t, string(rbac.RoleSystemAdministrator), event.ActorRole)
	assert.Equal(t, []string{"user.suspend"}, recorded)
	assert.Equal(t, 1, store.Len())
}

func TestRecorder_SystemActorWithoutContext(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(), testLogger())
	event := rec.Record(context.Background(), Entry{Action: ActionInvitationExpire, TargetType: TargetInvitation, TargetID: "u-2"})
	require.NotNil(t, event)
	assert.Equal(t, actor.SystemID, event.ActorUserID)
}

func TestRecorder_FailuresDoNotPropagate(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		rec := NewRecorder(failingStore{}, testLogger())
		assert.Nil(t, rec.Record(adminCtx(), Entry{Action: ActionCompanyDelete, TargetType: TargetCompany, TargetID: "c-1"}))
	})

	t.Run("sink failure", func(t *testing.T) {
		store := NewMemoryStore()
		sink := &failingLogger{}
		rec := NewRecorder(store, testLogger(), WithSink(sink))
		event := rec.Record(adminCtx(), Entry{Action: ActionCompanyDelete, TargetType: TargetCompany, TargetID: "c-1"})
		assert.NotNil(t, event)
		assert.Equal(t, 1, sink.calls)
		assert.Equal(t, 1, store.Len())
	})
}

func TestMemoryStore_SearchNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, testLogger(), WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	ctx := adminCtx()

	rec.Record(ctx, Entry{Action: ActionCompanyCreate, TargetType: TargetCompany, TargetID: "c-1", CompanyID: "c-1"})
	rec.Record(ctx, Entry{Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-1", CompanyID: "c-1"})
	rec.Record(ctx, Entry{Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-2", CompanyID: "c-2"})

	all, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u-2", all[0].TargetID)
	assert.Equal(t, "c-1", all[2].TargetID)

	tests := []struct {
		name   string
		filter SearchFilter
		want   int
	}{
		{"by company", SearchFilter{CompanyID: "c-1"}, 2},
		{"by action", SearchFilter{Actions: []Action{ActionUserInvite}}, 2},
		{"by target", SearchFilter{TargetType: TargetUser, TargetID: "u-1"}, 1},
		{"limit", SearchFilter{Limit: 1}, 1},
		{"offset past end", SearchFilter{Offset: 10}, 0},
		{"since", SearchFilter{Since: &all[1].CreatedAt}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Search(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, &Event{ID: "e-1", Metadata: map[string]interface{}{"k": "v"}}))

	got, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	got[0].Metadata["k"] = "changed"
	got[0].Action = ActionCompanyDelete

	again, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Metadata["k"])
	assert.Empty(t, again[0].Action)
}

func TestExport(t *testing.T) {
	events := []*Event{
		{ID: "e-1", ActorUserID: "u-admin", Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-1",
			Metadata: map[string]interface{}{"b": 2, "a": 1}, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "e-2", ActorUserID: "u-admin", Action: ActionUserActivate, TargetType: TargetUser, TargetID: "u-1",
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	t.Run("csv", func(t *testing.T) {
		data, err := Export(events, ExportFormatCSV)
		require.NoError(t, err)
		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, csvHeader, rows[0])
		assert.Equal(t, "2026-01-01T00:00:00Z", rows[1][1])
		assert.Equal(t, "a=1;b=2", rows[1][9])
	})

	t.Run("ndjson", func(t *testing.T) {
		data, err := Export(events, ExportFormatNDJSON)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		var e Event
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &e))
		assert.Equal(t, "e-2", e.ID)
	})

	t.Run("json empty", func(t *testing.T) {
		data, err := Export(nil, ExportFormatJSON)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Export(events, "xml")
		assert.Error(t, err)
	})
}

func TestFileLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(FileLoggerConfig{Dir: dir, MaxSize: 1, MaxFiles: 2})
	require.NoError(t, err)
	l.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Log(ctx, &Event{ID: "e", Action: ActionUserUpdate}))
	}
	require.NoError(t, l.Close())

	rotated, err := filepath.Glob(filepath.Join(dir, rotatedLogPattern))
	require.NoError(t, err)
	assert.Len(t, rotated, 2)

	data, err := os.ReadFile(filepath.Join(dir, currentLogName))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	assert.Error(t, l.Log(ctx, &Event{ID: "late"}))
}

func TestMultiLogger(t *testing.T) {
	dir := t.TempDir()
	fileLogger, err := NewFileLogger(FileLoggerConfig{Dir: dir})
	require.NoError(t, err)
	failing := &failingLogger{}

	multi := NewMultiLogger(failing, fileLogger)
	err = multi.Log(context.Background(), &Event{ID: "e-1"})
	assert.EqualError(t, err, "disk full")
	require.NoError(t, multi.Close())

	data, err := os.ReadFile(filepath.Join(dir, currentLogName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"e-1"`)
}

func TestHandlers_ScopeConstrained(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, testLogger())
	rec.Record(adminCtx(), Entry{Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-1", CompanyID: "c-1"})
	rec.Record(adminCtx(), Entry{Action: ActionUserInvite, TargetType: TargetUser, TargetID: "u-2", CompanyID: "c-2"})

	router := mux.NewRouter()
	NewHandlers(store, testLogger()).RegisterRoutes(router)

	serve := func(ctx context.Context, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("global sees all", func(t *testing.T) {
		w := serve(adminCtx(), "/api/audit")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Events []*Event `json:"events"`
			Count  int      `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Count)
	})

	t.Run("tenant filter is forced", func(t *testing.T) {
		w := serve(managerCtx("c-2"), "/api/audit?company_id=c-1")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Events []*Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Events, 1)
		assert.Equal(t, "u-2", body.Events[0].TargetID)
	})

	t.Run("csv export", func(t *testing.T) {
		w := serve(adminCtx(), "/api/audit?format=csv")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "audit-log.csv")
	})

	t.Run("bad time", func(t *testing.T) {
		w := serve(adminCtx(), "/api/audit?since=yesterday")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no actor", func(t *testing.T) {
		w := serve(context.Background(), "/api/audit")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
