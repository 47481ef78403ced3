package users

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
	"github.com/platinummonkey/integrationhub/pkg/storage"
)

type companyNames map[string]string

func (c companyNames) CompanyName(ctx context.Context, id string) (string, error) {
	name, ok := c[id]
	if !ok {
		return "", apperr.NotFoundf("company", id)
	}
	return name, nil
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	events *audit.MemoryStore
	sim    *storage.Simulator
	clock  *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	events := audit.NewMemoryStore()
	store := NewMemoryStore()
	sim := storage.NewSimulator(0, 0)
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	companies := companyNames{"c-platform": "Integration Hub", "c-acme": "Acme", "c-globex": "Globex"}

	svc := NewService(store, companies, audit.NewRecorder(events, logger), storage.NewBackend("users", sim, nil), logger,
		WithClock(clock.Now), WithInviteTTL(48*time.Hour))
	return &fixture{svc: svc, store: store, events: events, sim: sim, clock: clock}
}

func (f *fixture) seed(t *testing.T, users ...User) {
	t.Helper()
	for _, u := range users {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = f.clock.Now()
		}
		require.NoError(t, f.store.Create(context.Background(), u))
	}
}

func ctxAs(role rbac.Role, companyID string) context.Context {
	a := actor.Actor{ID: "actor-" + string(role), Role: role, Scope: scope.Scope{Kind: scope.Tenant, CompanyID: companyID}}
	if role == rbac.TopConsoleRole {
		a.Scope = scope.Scope{Kind: scope.Global}
	}
	return actor.WithActor(context.Background(), a)
}

var (
	adminCtx   = ctxAs(rbac.RoleSystemAdministrator, "c-platform")
	managerCtx = ctxAs(rbac.RoleCompanyManager, "c-acme")
)

func admin(id string) User {
	return User{ID: id, FirstName: "Admin", LastName: id, Email: id + "@hub.test", CompanyID: "c-platform",
		CompanyName: "Integration Hub", Roles: []rbac.Role{rbac.DirSystemAdmin}, Status: StatusActive}
}

func member(id, companyID string, status Status) User {
	return User{ID: id, FirstName: "Member", LastName: id, Email: id + "@" + companyID + ".test", CompanyID: companyID,
		Roles: []rbac.Role{rbac.DirDeveloper}, Status: status}
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	return f.events.Len()
}

func TestInvite(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.Invite(adminCtx, InviteRequest{
		FirstName: " Ada ", LastName: "Lovelace", Email: "Ada@Acme.test", CompanyID: "c-acme",
		Roles: []rbac.Role{"developer", rbac.DirDeveloper, rbac.DirAnalyst},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInvited, u.Status)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "ada@acme.test", u.Email)
	assert.Equal(t, "Acme", u.CompanyName)
	assert.Equal(t, []rbac.Role{rbac.DirDeveloper, rbac.DirAnalyst}, u.Roles)
	require.NotNil(t, u.Invitation)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), u.Invitation.ExpiresAt)
	assert.Len(t, u.History, 1)

	events, err := f.events.Search(context.Background(), audit.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionUserInvite, events[0].Action)
	assert.Equal(t, "c-acme", events[0].CompanyID)
}

func TestInvite_Rejections(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		req  InviteRequest
		kind apperr.Kind
	}{
		{"missing email", adminCtx, InviteRequest{CompanyID: "c-acme", Roles: []rbac.Role{rbac.DirViewer}}, apperr.Validation},
		{"bad email", adminCtx, InviteRequest{Email: "not-an-email", CompanyID: "c-acme", Roles: []rbac.Role{rbac.DirViewer}}, apperr.Validation},
		{"no roles", adminCtx, InviteRequest{Email: "x@acme.test", CompanyID: "c-acme"}, apperr.Validation},
		{"console role", adminCtx, InviteRequest{Email: "x@acme.test", CompanyID: "c-acme", Roles: []rbac.Role{rbac.RoleBusinessViewer}}, apperr.Validation},
		{"no company", adminCtx, InviteRequest{Email: "x@acme.test", Roles: []rbac.Role{rbac.DirViewer}}, apperr.Validation},
		{"unknown company", adminCtx, InviteRequest{Email: "x@acme.test", CompanyID: "c-nope", Roles: []rbac.Role{rbac.DirViewer}}, apperr.Validation},
		{"tenant grants admin", managerCtx, InviteRequest{Email: "x@acme.test", Roles: []rbac.Role{rbac.DirSystemAdmin}}, apperr.PolicyViolation},
		{"viewer", ctxAs(rbac.RoleBusinessViewer, "c-acme"), InviteRequest{Email: "x@acme.test", Roles: []rbac.Role{rbac.DirViewer}}, apperr.PolicyViolation},
		{"support is read-only", ctxAs(rbac.RoleSupportVendorSuccess, "c-acme"), InviteRequest{Email: "x@acme.test", Roles: []rbac.Role{rbac.DirViewer}}, apperr.PolicyViolation},
		{"no session", context.Background(), InviteRequest{Email: "x@acme.test", Roles: []rbac.Role{rbac.DirViewer}}, apperr.PolicyViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Invite(tt.ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err), err.Error())
			assert.Equal(t, 0, f.auditCount(t))
		})
	}
}

func TestInvite_TenantCompanyForced(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Invite(managerCtx, InviteRequest{Email: "new@acme.test", CompanyID: "c-globex", Roles: []rbac.Role{rbac.DirViewer}})
	require.NoError(t, err)
	assert.Equal(t, "c-acme", u.CompanyID)
}

func TestInvite_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seed(t, member("u1", "c-acme", StatusActive))
	_, err := f.svc.Invite(adminCtx, InviteRequest{Email: "U1@c-acme.test", CompanyID: "c-acme", Roles: []rbac.Role{rbac.DirViewer}})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"))

	u, err := f.svc.Invite(adminCtx, InviteRequest{Email: "dev@acme.test", CompanyID: "c-acme", Roles: []rbac.Role{rbac.DirDeveloper}})
	require.NoError(t, err)

	_, err = f.svc.Suspend(adminCtx, u.ID, "")
	require.Error(t, err, "invited users cannot be suspended")

	u, err = f.svc.Activate(adminCtx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status)
	assert.NotNil(t, u.LastLoginAt)

	for i := 0; i < 2; i++ {
		u, err = f.svc.Suspend(adminCtx, u.ID, "security review")
		require.NoError(t, err)
		assert.Equal(t, StatusSuspended, u.Status)
		u, err = f.svc.Unsuspend(adminCtx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, u.Status)
	}

	u, err = f.svc.Deactivate(adminCtx, u.ID, "left company")
	require.NoError(t, err)
	assert.Equal(t, StatusDeactivated, u.Status)

	for _, to := range []Status{StatusActive, StatusSuspended} {
		_, err = f.svc.SetStatus(adminCtx, u.ID, to, "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.Validation))
	}
	_, err = f.svc.UpdateRoles(adminCtx, u.ID, []rbac.Role{rbac.DirViewer})
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	got, err := f.svc.Get(adminCtx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 7)
	assert.Len(t, got.Activity, 7)

	events, err := f.events.Search(context.Background(), audit.SearchFilter{TargetID: u.ID})
	require.NoError(t, err)
	require.Len(t, events, 7)
	assert.Equal(t, audit.ActionUserDeactivate, events[0].Action)
	assert.Equal(t, "left company", events[0].Metadata["reason"])
	assert.Equal(t, audit.ActionUserInvite, events[6].Action)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"), member("u1", "c-acme", StatusInvited), member("u2", "c-acme", StatusActive))

	u, err := f.svc.SetStatus(adminCtx, "u1", StatusActive, "")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status)

	u, err = f.svc.SetStatus(adminCtx, "u2", StatusSuspended, "")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, u.Status)

	_, err = f.svc.SetStatus(adminCtx, "u2", StatusInvited, "")
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	_, err = f.svc.SetStatus(adminCtx, "u2", "Archived", "")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestLastAdminStanding(t *testing.T) {
	ops := map[string]func(f *fixture) error{
		"deactivate": func(f *fixture) error {
			_, err := f.svc.Deactivate(adminCtx, "root", "")
			return err
		},
		"suspend": func(f *fixture) error {
			_, err := f.svc.Suspend(adminCtx, "root", "")
			return err
		},
		"strip role": func(f *fixture) error {
			_, err := f.svc.UpdateRoles(adminCtx, "root", []rbac.Role{rbac.DirViewer})
			return err
		},
		"set status": func(f *fixture) error {
			_, err := f.svc.SetStatus(adminCtx, "root", StatusDeactivated, "")
			return err
		},
	}

	for name, op := range ops {
		t.Run(name+" rejected", func(t *testing.T) {
			f := newFixture(t)
			// a suspended admin does not count toward the quorum
			suspended := admin("dormant")
			suspended.Status = StatusSuspended
			f.seed(t, admin("root"), suspended)

			err := op(f)
			require.Error(t, err)
			assert.True(t, apperr.IsLastAdmin(err))
			assert.Equal(t, apperr.LastAdminMessage, apperr.UserMessage(err))

			root, err := f.store.Get(context.Background(), "root")
			require.NoError(t, err)
			assert.True(t, root.IsActiveAdmin())
			assert.Len(t, root.History, 0)
			count, err := f.store.CountActiveAdmins(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, count)
			assert.Equal(t, 0, f.auditCount(t))
		})

		t.Run(name+" allowed with another admin", func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, admin("root"), admin("backup"))
			require.NoError(t, op(f))
			count, err := f.store.CountActiveAdmins(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestLastAdminStanding_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("a1"), admin("a2"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"a1", "a2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Deactivate(adminCtx, id, "")
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, apperr.IsLastAdmin(err))
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	count, err := f.store.CountActiveAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLastAdminStanding_AcrossInstances(t *testing.T) {
	demote := map[string]func(svc *Service, id string) error{
		"deactivate": func(svc *Service, id string) error {
			_, err := svc.Deactivate(adminCtx, id, "")
			return err
		},
		"strip role": func(svc *Service, id string) error {
			_, err := svc.UpdateRoles(adminCtx, id, []rbac.Role{rbac.DirViewer})
			return err
		},
	}
	for name, op := range demote {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, admin("a1"), admin("a2"))
			// a second hub instance shares the store but not the service lock
			logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
			other := NewService(f.store, nil, audit.NewRecorder(f.events, logger), nil, logger)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i, svc := range []*Service{f.svc, other} {
				wg.Add(1)
				go func(i int, svc *Service) {
					defer wg.Done()
					errs[i] = op(svc, []string{"a1", "a2"}[i])
				}(i, svc)
			}
			wg.Wait()

			failures := 0
			for _, err := range errs {
				if err != nil {
					assert.True(t, apperr.IsLastAdmin(err), "got %v", err)
					failures++
				}
			}
			assert.Equal(t, 1, failures)
			count, err := f.store.CountActiveAdmins(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestUpdateRoles_TenantCannotTouchAdminRole(t *testing.T) {
	f := newFixture(t)
	acmeAdmin := admin("acme-admin")
	acmeAdmin.CompanyID = "c-acme"
	f.seed(t, admin("root"), acmeAdmin, member("u1", "c-acme", StatusActive))

	_, err := f.svc.UpdateRoles(managerCtx, "u1", []rbac.Role{rbac.DirSystemAdmin})
	assert.True(t, apperr.IsKind(err, apperr.PolicyViolation))

	_, err = f.svc.UpdateRoles(managerCtx, "acme-admin", []rbac.Role{rbac.DirViewer})
	assert.True(t, apperr.IsKind(err, apperr.PolicyViolation))

	u, err := f.svc.UpdateRoles(managerCtx, "u1", []rbac.Role{rbac.DirCompanyManager, rbac.DirDeveloper})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.DirCompanyManager, rbac.DirDeveloper}, u.Roles)
}

func TestScopeConstraint(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		admin("root"),
		member("acme-1", "c-acme", StatusActive),
		member("acme-2", "c-acme", StatusInvited),
		member("globex-1", "c-globex", StatusActive),
	)

	t.Run("tenant list ignores requested company", func(t *testing.T) {
		list, err := f.svc.List(managerCtx, Filter{CompanyID: "c-globex"})
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, u := range list {
			assert.Equal(t, "c-acme", u.CompanyID)
		}
	})

	t.Run("global list sees every tenant", func(t *testing.T) {
		list, err := f.svc.List(adminCtx, Filter{})
		require.NoError(t, err)
		assert.Len(t, list, 4)

		list, err = f.svc.List(adminCtx, Filter{CompanyID: "c-globex"})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("out of scope is not found", func(t *testing.T) {
		_, err := f.svc.Get(managerCtx, "globex-1")
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
		_, err = f.svc.Suspend(managerCtx, "globex-1", "")
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
	})

	t.Run("tenant without company sees nothing", func(t *testing.T) {
		a := actor.Actor{ID: "orphan", Role: rbac.RoleCompanyManager, Scope: scope.Of(session.Identity{ID: "orphan"}, rbac.RoleCompanyManager)}
		list, err := f.svc.List(actor.WithActor(context.Background(), a), Filter{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("no access-users capability", func(t *testing.T) {
		_, err := f.svc.List(ctxAs(rbac.RoleDeveloperExternal, "c-acme"), Filter{})
		assert.True(t, apperr.IsKind(err, apperr.PolicyViolation))
	})
}

func TestList_FilterSearchSort(t *testing.T) {
	f := newFixture(t)
	base := f.clock.Now()
	u1 := member("u1", "c-acme", StatusActive)
	u1.FirstName, u1.LastName, u1.CreatedAt = "Zed", "Zulu", base.Add(time.Hour)
	u2 := member("u2", "c-acme", StatusInvited)
	u2.FirstName, u2.LastName, u2.CreatedAt = "Amy", "Alpha", base.Add(2*time.Hour)
	u3 := member("u3", "c-acme", StatusActive)
	u3.FirstName, u3.LastName, u3.Roles = "Bob", "Bravo", []rbac.Role{rbac.DirAnalyst}
	u3.CreatedAt = base
	f.seed(t, u1, u2, u3)

	ids := func(list []User) []string {
		out := make([]string, len(list))
		for i, u := range list {
			out[i] = u.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"default by name", Filter{}, []string{"u2", "u3", "u1"}},
		{"name desc", Filter{SortDesc: true}, []string{"u1", "u3", "u2"}},
		{"created", Filter{SortBy: SortByCreatedAt}, []string{"u3", "u1", "u2"}},
		{"status", Filter{Status: StatusActive}, []string{"u3", "u1"}},
		{"role", Filter{Role: rbac.DirAnalyst}, []string{"u3"}},
		{"search", Filter{Query: "alpha"}, []string{"u2"}},
		{"search email", Filter{Query: "U1@"}, []string{"u1"}},
		{"page", Filter{Limit: 1, Offset: 1}, []string{"u3"}},
		{"past end", Filter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := f.svc.List(adminCtx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
		})
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"), member("u1", "c-acme", StatusActive), member("u2", "c-acme", StatusActive))

	first, email := "Grace", "grace@acme.test"
	u, err := f.svc.Update(managerCtx, "u1", UpdateRequest{FirstName: &first, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.FirstName)
	assert.Equal(t, email, u.Email)

	events, err := f.events.Search(context.Background(), audit.SearchFilter{Actions: []audit.Action{audit.ActionUserUpdate}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first_name,email", events[0].Metadata["fields"])

	_, err = f.svc.Update(managerCtx, "u1", UpdateRequest{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, 1, f.auditCount(t), "unchanged update is not audited")

	taken := "u2@c-acme.test"
	_, err = f.svc.Update(managerCtx, "u1", UpdateRequest{Email: &taken})
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestInvitationExpiry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"))

	u, err := f.svc.Invite(adminCtx, InviteRequest{Email: "late@acme.test", CompanyID: "c-acme", Roles: []rbac.Role{rbac.DirViewer}})
	require.NoError(t, err)

	n, err := f.svc.ExpireInvitations(actor.WithActor(context.Background(), actor.System()))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(49 * time.Hour)
	n, err = f.svc.ExpireInvitations(actor.WithActor(context.Background(), actor.System()))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(adminCtx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInvited, got.Status)
	assert.True(t, got.Invitation.Expired)
	assert.Equal(t, "invitation expired", got.History[len(got.History)-1].Reason)

	n, err = f.svc.ExpireInvitations(actor.WithActor(context.Background(), actor.System()))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already expired invitations are not counted again")

	_, err = f.svc.Activate(adminCtx, u.ID)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	got, err = f.svc.ResendInvite(adminCtx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Invitation.Expired)
	assert.Equal(t, 1, got.Invitation.ResentCount)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), got.Invitation.ExpiresAt)

	_, err = f.svc.Activate(adminCtx, u.ID)
	require.NoError(t, err)

	_, err = f.svc.ResendInvite(adminCtx, u.ID)
	assert.True(t, apperr.IsKind(err, apperr.Validation))

	events, err := f.events.Search(context.Background(), audit.SearchFilter{TargetType: audit.TargetInvitation})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionInvitationResend, events[0].Action)
	assert.Equal(t, audit.ActionInvitationExpire, events[1].Action)
	assert.Equal(t, actor.SystemID, events[1].ActorUserID)
}

func TestTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"), member("u1", "c-acme", StatusActive))

	f.sim.FailNext(1)
	_, err := f.svc.Suspend(adminCtx, "u1", "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.TransientFailure))
	assert.Equal(t, apperr.GenericFailureMessage, apperr.UserMessage(err))

	u, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, 0, f.auditCount(t))
}

func TestOtherActiveAdmins(t *testing.T) {
	f := newFixture(t)
	f.seed(t, admin("root"), admin("backup"), member("u1", "c-acme", StatusActive))

	n, err := f.svc.OtherActiveAdmins(adminCtx, "root")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.OtherActiveAdmins(adminCtx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusInvited, StatusActive, true},
		{StatusInvited, StatusSuspended, false},
		{StatusInvited, StatusDeactivated, true},
		{StatusActive, StatusSuspended, true},
		{StatusSuspended, StatusActive, true},
		{StatusActive, StatusInvited, false},
		{StatusDeactivated, StatusActive, false},
		{StatusDeactivated, StatusSuspended, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
