package registrations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

type fixture struct {
	svc       *Service
	store     *MemoryStore
	companies *companies.Service
	users     *users.Service
	events    *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	events := audit.NewMemoryStore()
	recorder := audit.NewRecorder(events, logger)

	companySvc := companies.NewService(companies.NewMemoryStore(), recorder, nil, logger)
	userSvc := users.NewService(users.NewMemoryStore(), companySvc, recorder, nil, logger)
	store := NewMemoryStore()
	return &fixture{
		svc:       NewService(store, companySvc, userSvc, recorder, nil, logger),
		store:     store,
		companies: companySvc,
		users:     userSvc,
		events:    events,
	}
}

func ctxAs(role rbac.Role) context.Context {
	a := actor.Actor{ID: "actor-" + string(role), Role: role, Scope: scope.Scope{Kind: scope.Tenant, CompanyID: "c-acme"}}
	if role == rbac.TopConsoleRole {
		a.Scope = scope.Scope{Kind: scope.Global}
	}
	return actor.WithActor(context.Background(), a)
}

var adminCtx = ctxAs(rbac.RoleSystemAdministrator)

func submit(t *testing.T, f *fixture, name, email string) Request {
	t.Helper()
	r, err := f.svc.Submit(context.Background(), SubmitRequest{CompanyName: name, Email: email, SubmitterName: "Grace Brewster Hopper"})
	require.NoError(t, err)
	return r
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)

	r := submit(t, f, "  Initech ", "Grace@Initech.test")
	assert.Equal(t, StatusNew, r.Status)
	assert.Equal(t, "Initech", r.CompanyName)
	assert.Equal(t, "grace@initech.test", r.SubmittedByEmail)
	assert.False(t, r.Decided())

	events, err := f.events.Search(context.Background(), audit.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRegistrationSubmit, events[0].Action)
	assert.Equal(t, actor.SystemID, events[0].ActorUserID)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing company", SubmitRequest{Email: "a@b.test"}},
		{"bad email", SubmitRequest{CompanyName: "Hooli", Email: "not-an-email"}},
		{"duplicate pending", SubmitRequest{CompanyName: "initech", Email: "other@initech.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tt.req)
			assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)
		})
	}
}

func TestReviewRequiresAdminArea(t *testing.T) {
	f := newFixture(t)
	r := submit(t, f, "Initech", "grace@initech.test")

	for _, role := range []rbac.Role{rbac.RoleCompanyManager, rbac.RoleComplianceAuditor, rbac.RoleBusinessViewer} {
		ctx := ctxAs(role)
		_, err := f.svc.List(ctx, Filter{})
		assert.True(t, apperr.IsKind(err, apperr.PolicyViolation), "%s list: %v", role, err)
		_, err = f.svc.Approve(ctx, r.ID)
		assert.True(t, apperr.IsKind(err, apperr.PolicyViolation), "%s approve: %v", role, err)
		_, err = f.svc.Reject(ctx, r.ID, "")
		assert.True(t, apperr.IsKind(err, apperr.PolicyViolation), "%s reject: %v", role, err)
	}

	_, err := f.svc.List(context.Background(), Filter{})
	assert.True(t, apperr.IsKind(err, apperr.PolicyViolation))

	got, err := f.svc.Get(adminCtx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, got.Status)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	r := submit(t, f, "Initech", "grace@initech.test")

	approved, err := f.svc.Approve(adminCtx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "actor-"+string(rbac.RoleSystemAdministrator), approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)
	require.NotEmpty(t, approved.CompanyID)
	require.NotEmpty(t, approved.InvitedUserID)

	company, err := f.companies.Get(adminCtx, approved.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "Initech", company.Name)
	assert.Equal(t, "initech", company.Slug)

	owner, err := f.users.Get(adminCtx, approved.InvitedUserID)
	require.NoError(t, err)
	assert.Equal(t, users.StatusInvited, owner.Status)
	assert.Equal(t, company.ID, owner.CompanyID)
	assert.Equal(t, "Grace", owner.FirstName)
	assert.Equal(t, "Brewster Hopper", owner.LastName)
	assert.Equal(t, []rbac.Role{rbac.DirCompanyOwner}, owner.Roles)

	_, err = f.svc.Approve(adminCtx, r.ID)
	assert.True(t, errors.Is(err, ErrAlreadyDecided))
	_, err = f.svc.Reject(adminCtx, r.ID, "late")
	assert.True(t, errors.Is(err, ErrAlreadyDecided))

	approvals, err := f.events.Search(context.Background(), audit.SearchFilter{Actions: []audit.Action{audit.ActionRegistrationApprove}})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, company.ID, approvals[0].CompanyID)
}

func TestApproveRollsBackCompanyWhenInviteFails(t *testing.T) {
	f := newFixture(t)
	first := submit(t, f, "Initech", "grace@initech.test")
	_, err := f.svc.Approve(adminCtx, first.ID)
	require.NoError(t, err)

	// same submitter email, so the owner invitation collides
	second := submit(t, f, "Hooli", "grace@initech.test")
	_, err = f.svc.Approve(adminCtx, second.ID)
	require.Error(t, err)

	list, err := f.companies.List(adminCtx, companies.Filter{Query: "hooli"})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := f.svc.Get(adminCtx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, got.Status)
}

// failingDecideStore fails the next n decisions
type failingDecideStore struct {
	*MemoryStore
	failures int
}

func (s *failingDecideStore) Decide(ctx context.Context, r Request) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.MemoryStore.Decide(ctx, r)
}

func TestApproveRollsBackWhenDecideFails(t *testing.T) {
	f := newFixture(t)
	store := &failingDecideStore{MemoryStore: f.store, failures: 1}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := NewService(store, f.companies, f.users, audit.NewRecorder(f.events, logger), nil, logger)
	r := submit(t, f, "Initech", "grace@initech.test")

	_, err := svc.Approve(adminCtx, r.ID)
	require.Error(t, err)

	list, err := f.companies.List(adminCtx, companies.Filter{Query: "initech"})
	require.NoError(t, err)
	assert.Empty(t, list)
	owners, err := f.users.List(adminCtx, users.Filter{Query: "grace@initech.test"})
	require.NoError(t, err)
	assert.Empty(t, owners)
	withdrawn, err := f.events.Search(context.Background(), audit.SearchFilter{Actions: []audit.Action{audit.ActionInvitationWithdraw}})
	require.NoError(t, err)
	assert.Len(t, withdrawn, 1)

	// the retry provisions from scratch
	approved, err := svc.Approve(adminCtx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	company, err := f.companies.Get(adminCtx, approved.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "Initech", company.Name)
	owner, err := f.users.Get(adminCtx, approved.InvitedUserID)
	require.NoError(t, err)
	assert.Equal(t, "grace@initech.test", owner.Email)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	r := submit(t, f, "Initech", "grace@initech.test")

	rejected, err := f.svc.Reject(adminCtx, r.ID, "  duplicate tenant ")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate tenant", rejected.RejectReason)
	assert.Empty(t, rejected.CompanyID)

	_, err = f.svc.Approve(adminCtx, r.ID)
	assert.True(t, errors.Is(err, ErrAlreadyDecided))

	// a rejected name can be submitted again
	submit(t, f, "Initech", "grace@initech.test")

	newOnes, err := f.svc.List(adminCtx, Filter{Status: StatusNew})
	require.NoError(t, err)
	assert.Len(t, newOnes, 1)
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	h := NewHandlers(f.svc)

	public := mux.NewRouter()
	h.RegisterPublicRoutes(public)
	review := mux.NewRouter()
	h.RegisterRoutes(review)

	rec := httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest("POST", "/api/registrations",
		strings.NewReader(`{"company_name":"Initech","email":"grace@initech.test"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest("POST", "/api/registrations", strings.NewReader(`{"email":"x@y.test"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	review.ServeHTTP(rec, httptest.NewRequest("GET", "/api/registrations?status=new", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	review.ServeHTTP(rec, httptest.NewRequest("GET", "/api/registrations?status=new", nil).WithContext(adminCtx))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	list, err := f.svc.List(adminCtx, Filter{})
	require.NoError(t, err)
	id := list[0].ID

	rec = httptest.NewRecorder()
	review.ServeHTTP(rec, httptest.NewRequest("POST", "/api/registrations/"+id+"/reject", strings.NewReader(`{"reason":"spam"}`)).WithContext(adminCtx))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"rejected"`)

	rec = httptest.NewRecorder()
	review.ServeHTTP(rec, httptest.NewRequest("POST", "/api/registrations/"+id+"/approve", nil).WithContext(adminCtx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
