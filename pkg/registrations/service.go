package registrations

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
	"github.com/platinummonkey/integrationhub/pkg/companies"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/storage"
	"github.com/platinummonkey/integrationhub/pkg/users"
)

// CompanyProvisioner creates the company of an approved request
type CompanyProvisioner interface {
	Create(ctx context.Context, req companies.CreateRequest) (companies.Company, error)
	Delete(ctx context.Context, id string) error
}

// OwnerInviter invites the submitter of an approved request
type OwnerInviter interface {
	Invite(ctx context.Context, req users.InviteRequest) (users.User, error)
	WithdrawInvitation(ctx context.Context, id string) error
}

// Service implements registration review
type Service struct {
	store     Store
	companies CompanyProvisioner
	users     OwnerInviter
	recorder  *audit.Recorder
	backend   *storage.Backend
	logger    *observability.Logger
	now       func() time.Time

	// mu makes each decision atomic within the process
	mu sync.Mutex
}

// NewService creates the registration service
func NewService(store Store, companies CompanyProvisioner, users OwnerInviter, recorder *audit.Recorder, backend *storage.Backend, logger *observability.Logger) *Service {
	if backend == nil {
		backend = storage.NewBackend("registrations", nil, nil)
	}
	return &Service{
		store:     store,
		companies: companies,
		users:     users,
		recorder:  recorder,
		backend:   backend,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit records a new registration request. It needs no session.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Request, error) {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return Request{}, apperr.Invalid("company name is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return Request{}, apperr.Invalid("invalid email address %q", req.Email)
	}

	r := Request{
		ID:               uuid.New().String(),
		CompanyName:      name,
		SubmittedByEmail: email,
		SubmitterName:    strings.TrimSpace(req.SubmitterName),
		Message:          strings.TrimSpace(req.Message),
		Status:           StatusNew,
		SubmittedAt:      s.now().UTC(),
	}

	err := s.backend.Run(ctx, "submit", func(ctx context.Context) error {
		pending, err := s.store.List(ctx, Filter{Status: StatusNew})
		if err != nil {
			return err
		}
		for _, p := range pending {
			if strings.EqualFold(p.CompanyName, name) {
				return apperr.Invalid("a registration for %q is already awaiting review", name)
			}
		}
		return s.store.Create(ctx, r)
	})
	if err != nil {
		return Request{}, fmt.Errorf("failed to submit registration: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionRegistrationSubmit,
		TargetType: audit.TargetRegistration,
		TargetID:   r.ID,
		Metadata:   map[string]interface{}{"company_name": r.CompanyName, "email": r.SubmittedByEmail},
	})
	return r, nil
}

// List returns requests, newest first
func (s *Service) List(ctx context.Context, filter Filter) ([]Request, error) {
	if _, err := actor.Require(ctx, rbac.CapAccessAdminArea); err != nil {
		return nil, err
	}
	var out []Request
	err := s.backend.Run(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.store.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return out, nil
}

// Get returns one request
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	if _, err := actor.Require(ctx, rbac.CapAccessAdminArea); err != nil {
		return Request{}, err
	}
	var r Request
	err := s.backend.Run(ctx, "get", func(ctx context.Context) error {
		var err error
		r, err = s.store.Get(ctx, id)
		return err
	})
	return r, err
}

// Approve creates the company, invites the submitter as its owner and marks the
// request approved. If a later step fails the earlier ones are undone, so the
// request stays New and can be approved again.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessAdminArea, rbac.EntityRegistrations)
	if err != nil {
		return Request{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.undecided(ctx, id)
	if err != nil {
		return Request{}, err
	}

	company, err := s.companies.Create(ctx, companies.CreateRequest{Name: r.CompanyName})
	if err != nil {
		return Request{}, fmt.Errorf("failed to create company for registration: %w", err)
	}

	first, last := splitName(r.SubmitterName)
	owner, err := s.users.Invite(ctx, users.InviteRequest{
		FirstName: first,
		LastName:  last,
		Email:     r.SubmittedByEmail,
		CompanyID: company.ID,
		Roles:     []rbac.Role{rbac.DirCompanyOwner},
	})
	if err != nil {
		s.rollbackCompany(ctx, company.ID)
		return Request{}, fmt.Errorf("failed to invite registration owner: %w", err)
	}

	now := s.now().UTC()
	r.Status = StatusApproved
	r.DecidedBy = a.ID
	r.DecidedAt = &now
	r.CompanyID = company.ID
	r.InvitedUserID = owner.ID

	if err := s.backend.Run(ctx, "decide", func(ctx context.Context) error {
		return s.store.Decide(ctx, r)
	}); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"registration_id": id,
			"company_id":      company.ID,
			"user_id":         owner.ID,
		}).WithError(err).Error("failed to store approval after provisioning")
		s.rollbackOwner(ctx, owner.ID)
		s.rollbackCompany(ctx, company.ID)
		return Request{}, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionRegistrationApprove,
		TargetType: audit.TargetRegistration,
		TargetID:   id,
		CompanyID:  company.ID,
		Metadata:   map[string]interface{}{"company_id": company.ID, "invited_user_id": owner.ID},
	})
	s.logger.WithFields(map[string]interface{}{
		"registration_id": id,
		"company_id":      company.ID,
		"actor_id":        a.ID,
	}).Info("registration approved")
	return r, nil
}

// Reject marks the request rejected with an optional reason
func (s *Service) Reject(ctx context.Context, id, reason string) (Request, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessAdminArea, rbac.EntityRegistrations)
	if err != nil {
		return Request{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.undecided(ctx, id)
	if err != nil {
		return Request{}, err
	}

	now := s.now().UTC()
	r.Status = StatusRejected
	r.DecidedBy = a.ID
	r.DecidedAt = &now
	r.RejectReason = strings.TrimSpace(reason)

	if err := s.backend.Run(ctx, "decide", func(ctx context.Context) error {
		return s.store.Decide(ctx, r)
	}); err != nil {
		return Request{}, err
	}

	metadata := map[string]interface{}{}
	if r.RejectReason != "" {
		metadata["reason"] = r.RejectReason
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionRegistrationReject,
		TargetType: audit.TargetRegistration,
		TargetID:   id,
		Metadata:   metadata,
	})
	return r, nil
}

func (s *Service) undecided(ctx context.Context, id string) (Request, error) {
	var r Request
	err := s.backend.Run(ctx, "get", func(ctx context.Context) error {
		var err error
		r, err = s.store.Get(ctx, id)
		return err
	})
	if err != nil {
		return Request{}, err
	}
	if r.Decided() {
		return Request{}, ErrAlreadyDecided
	}
	return r, nil
}

func (s *Service) rollbackOwner(ctx context.Context, userID string) {
	if err := s.users.WithdrawInvitation(ctx, userID); err != nil {
		s.logger.WithField("user_id", userID).WithError(err).Error("failed to withdraw owner invitation after failed approval")
	}
}

func (s *Service) rollbackCompany(ctx context.Context, companyID string) {
	if err := s.companies.Delete(ctx, companyID); err != nil {
		s.logger.WithField("company_id", companyID).WithError(err).Error("failed to remove company after failed approval")
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
