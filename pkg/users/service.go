package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/storage"
)

// DefaultInviteTTL is how long an invitation stays valid
const DefaultInviteTTL = 7 * 24 * time.Hour

// Service implements the user directory operations
type Service struct {
	store     Store
	companies scope.CompanyDirectory
	recorder  *audit.Recorder
	backend   *storage.Backend
	logger    *observability.Logger
	inviteTTL time.Duration
	now       func() time.Time

	// mu serializes mutations within the process. Store.UpdateRetainingAdmin keeps
	// the last-admin check atomic across instances.
	mu sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithInviteTTL sets the invitation validity period
func WithInviteTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.inviteTTL = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the user service. companies may be nil, leaving company names blank.
func NewService(store Store, companies scope.CompanyDirectory, recorder *audit.Recorder, backend *storage.Backend, logger *observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		companies: companies,
		recorder:  recorder,
		backend:   backend,
		logger:    logger,
		inviteTTL: DefaultInviteTTL,
		now:       time.Now,
	}
	if s.backend == nil {
		s.backend = storage.NewBackend("users", nil, nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the users visible in the caller's scope matching filter
func (s *Service) List(ctx context.Context, filter Filter) ([]User, error) {
	a, err := actor.Require(ctx, rbac.CapAccessUsers)
	if err != nil {
		return nil, err
	}
	filter.CompanyID = a.Scope.Constrain(filter.CompanyID)

	var out []User
	err = s.backend.Run(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.store.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}

// Get returns one user. Users outside the caller's scope are NotFound.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	a, err := actor.Require(ctx, rbac.CapAccessUsers)
	if err != nil {
		return User{}, err
	}

	var u User
	err = s.backend.Run(ctx, "get", func(ctx context.Context) error {
		var err error
		u, err = s.getScoped(ctx, a, id)
		return err
	})
	return u, err
}

// OtherActiveAdmins counts the Active System Admins other than the given user
func (s *Service) OtherActiveAdmins(ctx context.Context, id string) (int, error) {
	a, err := actor.Require(ctx, rbac.CapAccessUsers)
	if err != nil {
		return 0, err
	}

	var others int
	err = s.backend.Run(ctx, "count_admins", func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		total, err := s.store.CountActiveAdmins(ctx)
		if err != nil {
			return err
		}
		others = total
		if u.IsActiveAdmin() {
			others--
		}
		return nil
	})
	return others, err
}

// Invite creates a user in the Invited state
func (s *Service) Invite(ctx context.Context, req InviteRequest) (User, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapInviteUsers, rbac.EntityUsers)
	if err != nil {
		return User{}, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return User{}, err
	}
	roles, err := normalizeRoles(req.Roles)
	if err != nil {
		return User{}, err
	}
	if containsRole(roles, rbac.TopDirectoryRole) && !a.Scope.IsGlobal() {
		return User{}, adminGrantDenied(a)
	}
	companyID := a.Scope.Constrain(strings.TrimSpace(req.CompanyID))
	if companyID == "" {
		return User{}, apperr.Invalid("company is required")
	}

	now := s.now().UTC()
	u := User{
		ID:        uuid.New().String(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		CompanyID: companyID,
		Roles:     roles,
		Status:    StatusInvited,
		CreatedAt: now,
		UpdatedAt: now,
		Invitation: &Invitation{
			InvitedBy: a.ID,
			InvitedAt: now,
			ExpiresAt: now.Add(s.inviteTTL),
		},
		History:  []StatusChange{{To: StatusInvited, By: a.ID, At: now}},
		Activity: []ActivityEntry{{At: now, Actor: a.ID, Action: "invited", Detail: joinRoles(roles)}},
	}

	err = s.backend.Run(ctx, "invite", func(ctx context.Context) error {
		name, err := s.companyName(ctx, companyID)
		if err != nil {
			return err
		}
		u.CompanyName = name
		return s.store.Create(ctx, u)
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to invite user: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionUserInvite,
		TargetType: audit.TargetUser,
		TargetID:   u.ID,
		CompanyID:  u.CompanyID,
		Metadata:   map[string]interface{}{"email": u.Email, "roles": joinRoles(roles)},
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":    u.ID,
		"company_id": u.CompanyID,
		"actor_id":   a.ID,
	}).Info("user invited")
	return u, nil
}

// Activate moves an Invited user to Active, as on first login
func (s *Service) Activate(ctx context.Context, id string) (User, error) {
	return s.transition(ctx, "activate", id, StatusInvited, StatusActive, "")
}

// Suspend moves an Active user to Suspended
func (s *Service) Suspend(ctx context.Context, id, reason string) (User, error) {
	return s.transition(ctx, "suspend", id, StatusActive, StatusSuspended, reason)
}

// Unsuspend moves a Suspended user back to Active
func (s *Service) Unsuspend(ctx context.Context, id string) (User, error) {
	return s.transition(ctx, "unsuspend", id, StatusSuspended, StatusActive, "")
}

// Deactivate terminally deactivates a user
func (s *Service) Deactivate(ctx context.Context, id, reason string) (User, error) {
	return s.transition(ctx, "deactivate", id, "", StatusDeactivated, reason)
}

// SetStatus moves a user to status by whichever lifecycle transition applies
func (s *Service) SetStatus(ctx context.Context, id string, status Status, reason string) (User, error) {
	if status == StatusInvited {
		return User{}, apperr.Invalid("users cannot be moved back to %s", StatusInvited)
	}
	if _, ok := ParseStatus(string(status)); !ok {
		return User{}, apperr.Invalid("unknown status %q", status)
	}
	return s.transition(ctx, "set_status", id, "", status, reason)
}

func (s *Service) transition(ctx context.Context, op, id string, from, to Status, reason string) (User, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapManageUserLifecycle, rbac.EntityUsers)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		updated  User
		previous Status
	)
	err = s.backend.Run(ctx, op, func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if from != "" && u.Status != from {
			return apperr.Invalid("user is %s, expected %s", u.Status, from)
		}
		if !CanTransition(u.Status, to) {
			return apperr.Invalid("cannot change status from %s to %s", u.Status, to)
		}

		now := s.now().UTC()
		if u.Status == StatusInvited && to == StatusActive && u.Invitation != nil && u.Invitation.Expired {
			return apperr.Invalid("the invitation for %s has expired; resend it first", u.Email)
		}
		demotes := u.IsActiveAdmin() && to != StatusActive

		previous = u.Status
		u.History = append(u.History, StatusChange{From: u.Status, To: to, By: a.ID, At: now, Reason: reason})
		u.Activity = append(u.Activity, ActivityEntry{At: now, Actor: a.ID, Action: activityFor(u.Status, to), Detail: reason})
		if u.Status == StatusInvited && to == StatusActive {
			u.LastLoginAt = &now
		}
		u.Status = to
		u.UpdatedAt = now
		if err := s.save(ctx, u, demotes); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		s.logFailure(a, op, id, err)
		return User{}, err
	}

	metadata := map[string]interface{}{"from": string(previous), "to": string(to)}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     actionFor(previous, to),
		TargetType: audit.TargetUser,
		TargetID:   id,
		CompanyID:  updated.CompanyID,
		Metadata:   metadata,
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":  id,
		"actor_id": a.ID,
		"from":     string(previous),
		"to":       string(to),
	}).Info("user status changed")
	return updated, nil
}

// UpdateRoles replaces a user's directory roles
func (s *Service) UpdateRoles(ctx context.Context, id string, roles []rbac.Role) (User, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapManageUserLifecycle, rbac.EntityUsers)
	if err != nil {
		return User{}, err
	}
	roles, err = normalizeRoles(roles)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		updated  User
		previous []rbac.Role
	)
	err = s.backend.Run(ctx, "update_roles", func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if u.Status == StatusDeactivated {
			return apperr.Invalid("deactivated users cannot be changed")
		}

		hadAdmin := u.HasRole(rbac.TopDirectoryRole)
		keepsAdmin := containsRole(roles, rbac.TopDirectoryRole)
		if hadAdmin != keepsAdmin && !a.Scope.IsGlobal() {
			return adminGrantDenied(a)
		}
		demotes := u.IsActiveAdmin() && !keepsAdmin

		now := s.now().UTC()
		previous = u.Roles
		u.Roles = roles
		u.UpdatedAt = now
		u.Activity = append(u.Activity, ActivityEntry{At: now, Actor: a.ID, Action: "roles updated", Detail: joinRoles(roles)})
		if err := s.save(ctx, u, demotes); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		s.logFailure(a, "update_roles", id, err)
		return User{}, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionUserRolesUpdate,
		TargetType: audit.TargetUser,
		TargetID:   id,
		CompanyID:  updated.CompanyID,
		Metadata:   map[string]interface{}{"from": joinRoles(previous), "to": joinRoles(roles)},
	})
	return updated, nil
}

// Update changes profile fields
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (User, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapManageUserLifecycle, rbac.EntityUsers)
	if err != nil {
		return User{}, err
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return User{}, err
		}
		req.Email = &email
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		updated User
		changed []string
	)
	err = s.backend.Run(ctx, "update", func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if u.Status == StatusDeactivated {
			return apperr.Invalid("deactivated users cannot be changed")
		}
		if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != u.FirstName {
			u.FirstName = strings.TrimSpace(*req.FirstName)
			changed = append(changed, "first_name")
		}
		if req.LastName != nil && strings.TrimSpace(*req.LastName) != u.LastName {
			u.LastName = strings.TrimSpace(*req.LastName)
			changed = append(changed, "last_name")
		}
		if req.Email != nil && *req.Email != u.Email {
			u.Email = *req.Email
			changed = append(changed, "email")
		}
		if len(changed) == 0 {
			updated = u
			return nil
		}

		now := s.now().UTC()
		u.UpdatedAt = now
		u.Activity = append(u.Activity, ActivityEntry{At: now, Actor: a.ID, Action: "profile updated", Detail: strings.Join(changed, ",")})
		if err := s.store.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		s.logFailure(a, "update", id, err)
		return User{}, err
	}

	if len(changed) > 0 {
		s.recorder.Record(ctx, audit.Entry{
			Action:     audit.ActionUserUpdate,
			TargetType: audit.TargetUser,
			TargetID:   id,
			CompanyID:  updated.CompanyID,
			Metadata:   map[string]interface{}{"fields": strings.Join(changed, ",")},
		})
	}
	return updated, nil
}

// ResendInvite renews the invitation of an Invited user
func (s *Service) ResendInvite(ctx context.Context, id string) (User, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapInviteUsers, rbac.EntityUsers)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated User
	err = s.backend.Run(ctx, "resend_invite", func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if u.Status != StatusInvited {
			return apperr.Invalid("only invited users can be re-invited, user is %s", u.Status)
		}

		now := s.now().UTC()
		if u.Invitation == nil {
			u.Invitation = &Invitation{InvitedBy: a.ID, InvitedAt: now}
		}
		u.Invitation.ExpiresAt = now.Add(s.inviteTTL)
		u.Invitation.ResentCount++
		u.Invitation.Expired = false
		u.UpdatedAt = now
		u.Activity = append(u.Activity, ActivityEntry{At: now, Actor: a.ID, Action: "invitation resent"})
		if err := s.store.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		s.logFailure(a, "resend_invite", id, err)
		return User{}, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionInvitationResend,
		TargetType: audit.TargetInvitation,
		TargetID:   id,
		CompanyID:  updated.CompanyID,
		Metadata:   map[string]interface{}{"resent_count": updated.Invitation.ResentCount},
	})
	return updated, nil
}

// WithdrawInvitation removes an Invited user that never signed in, freeing the email
func (s *Service) WithdrawInvitation(ctx context.Context, id string) error {
	a, err := actor.RequireMutation(ctx, rbac.CapInviteUsers, rbac.EntityUsers)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var withdrawn User
	err = s.backend.Run(ctx, "withdraw_invite", func(ctx context.Context) error {
		u, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if u.Status != StatusInvited {
			return apperr.Invalid("only invited users can be withdrawn, user is %s", u.Status)
		}
		withdrawn = u
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		s.logFailure(a, "withdraw_invite", id, err)
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionInvitationWithdraw,
		TargetType: audit.TargetInvitation,
		TargetID:   id,
		CompanyID:  withdrawn.CompanyID,
		Metadata:   map[string]interface{}{"email": withdrawn.Email},
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":  id,
		"actor_id": a.ID,
	}).Info("invitation withdrawn")
	return nil
}

// ExpireInvitations marks every overdue invitation in scope as expired and
// returns how many were marked. Expired users stay Invited.
func (s *Service) ExpireInvitations(ctx context.Context) (int, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapInviteUsers, rbac.EntityUsers)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []User
	err = s.backend.Run(ctx, "expire_invitations", func(ctx context.Context) error {
		invited, err := s.store.List(ctx, Filter{Status: StatusInvited, CompanyID: a.Scope.Constrain("")})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, u := range invited {
			if u.Invitation == nil || u.Invitation.Expired || now.Before(u.Invitation.ExpiresAt) {
				continue
			}
			u.Invitation.Expired = true
			u.UpdatedAt = now
			u.History = append(u.History, StatusChange{From: StatusInvited, To: StatusInvited, By: a.ID, At: now, Reason: "invitation expired"})
			u.Activity = append(u.Activity, ActivityEntry{At: now, Actor: a.ID, Action: "invitation expired"})
			if err := s.store.Update(ctx, u); err != nil {
				return err
			}
			expired = append(expired, u)
		}
		return nil
	})

	for _, u := range expired {
		s.recorder.Record(ctx, audit.Entry{
			Action:     audit.ActionInvitationExpire,
			TargetType: audit.TargetInvitation,
			TargetID:   u.ID,
			CompanyID:  u.CompanyID,
			Metadata:   map[string]interface{}{"expires_at": u.Invitation.ExpiresAt.Format(time.RFC3339)},
		})
	}
	if err != nil {
		return len(expired), fmt.Errorf("failed to expire invitations: %w", err)
	}
	return len(expired), nil
}

func (s *Service) getScoped(ctx context.Context, a actor.Actor, id string) (User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !a.Scope.Includes(u.CompanyID) {
		return User{}, apperr.NotFoundf("user", id)
	}
	return u, nil
}

// save writes u. A write that takes an Active System Admin out of the set fails
// with apperr.ErrLastAdmin when no other one remains.
func (s *Service) save(ctx context.Context, u User, demotesAdmin bool) error {
	if demotesAdmin {
		return s.store.UpdateRetainingAdmin(ctx, u)
	}
	return s.store.Update(ctx, u)
}

func (s *Service) companyName(ctx context.Context, companyID string) (string, error) {
	if s.companies == nil {
		return "", nil
	}
	name, err := s.companies.CompanyName(ctx, companyID)
	if apperr.IsKind(err, apperr.NotFound) {
		return "", apperr.Invalid("unknown company %q", companyID)
	}
	return name, err
}

func (s *Service) logFailure(a actor.Actor, op, id string, err error) {
	log := s.logger.WithFields(map[string]interface{}{
		"user_id":   id,
		"actor_id":  a.ID,
		"operation": op,
	}).WithError(err)
	if apperr.IsLastAdmin(err) {
		log.Warn("rejected change to the last System Admin")
		return
	}
	log.Debug("user operation failed")
}

func adminGrantDenied(a actor.Actor) error {
	return apperr.Denied(string(rbac.TopDirectoryRole), AdminGrantMessage(a.Role))
}

// AdminGrantMessage explains why a tenant-scoped role cannot change System Admin grants
func AdminGrantMessage(role rbac.Role) string {
	return fmt.Sprintf("Your role (%s) cannot grant or revoke System Admin.", rbac.ConsoleCatalog().Describe(role).Label)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Invalid("invalid email address %q", raw)
	}
	return email, nil
}

func normalizeRoles(in []rbac.Role) ([]rbac.Role, error) {
	if len(in) == 0 {
		return nil, apperr.Invalid("at least one role is required")
	}
	catalog := rbac.DirectoryCatalog()
	seen := make(map[rbac.Role]bool, len(in))
	out := make([]rbac.Role, 0, len(in))
	for _, r := range in {
		role, ok := catalog.Parse(string(r))
		if !ok {
			return nil, apperr.Invalid("unknown role %q", r)
		}
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	return out, nil
}

func containsRole(roles []rbac.Role, role rbac.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func joinRoles(roles []rbac.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func actionFor(from, to Status) audit.Action {
	switch {
	case to == StatusDeactivated:
		return audit.ActionUserDeactivate
	case to == StatusSuspended:
		return audit.ActionUserSuspend
	case from == StatusSuspended:
		return audit.ActionUserUnsuspend
	default:
		return audit.ActionUserActivate
	}
}

func activityFor(from, to Status) string {
	switch actionFor(from, to) {
	case audit.ActionUserDeactivate:
		return "deactivated"
	case audit.ActionUserSuspend:
		return "suspended"
	case audit.ActionUserUnsuspend:
		return "unsuspended"
	default:
		return "activated"
	}
}
