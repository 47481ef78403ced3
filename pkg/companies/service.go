package companies

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/audit"
	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/storage"
)

const maxSlugAttempts = 100

// Service implements company management
type Service struct {
	store    Store
	recorder *audit.Recorder
	backend  *storage.Backend
	logger   *observability.Logger
	onChange func(companyID string)
	now      func() time.Time

	// mu serializes writes so slug allocation and uniqueness checks see a stable set
	mu sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithChangeHook registers a callback invoked after a company is renamed or deleted
func WithChangeHook(fn func(companyID string)) Option {
	return func(s *Service) {
		s.onChange = fn
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the company service
func NewService(store Store, recorder *audit.Recorder, backend *storage.Backend, logger *observability.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		backend:  backend,
		logger:   logger,
		now:      time.Now,
	}
	if s.backend == nil {
		s.backend = storage.NewBackend("companies", nil, nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompanyName returns the display name of a company. It performs no access check
// and serves scope resolution and user invitations.
func (s *Service) CompanyName(ctx context.Context, companyID string) (string, error) {
	var name string
	err := s.backend.Run(ctx, "lookup_name", func(ctx context.Context) error {
		c, err := s.store.Get(ctx, companyID)
		if err != nil {
			return err
		}
		name = c.Name
		return nil
	})
	return name, err
}

// List returns the companies visible in the caller's scope
func (s *Service) List(ctx context.Context, filter Filter) ([]Company, error) {
	a, err := actor.Require(ctx, rbac.CapAccessCompanies)
	if err != nil {
		return nil, err
	}
	filter.ID = a.Scope.Constrain(filter.ID)

	var out []Company
	err = s.backend.Run(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.store.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return out, nil
}

// Get returns one company. Companies outside the caller's scope are NotFound.
func (s *Service) Get(ctx context.Context, id string) (Company, error) {
	a, err := actor.Require(ctx, rbac.CapAccessCompanies)
	if err != nil {
		return Company{}, err
	}
	var c Company
	err = s.backend.Run(ctx, "get", func(ctx context.Context) error {
		var err error
		c, err = s.getScoped(ctx, a, id)
		return err
	})
	return c, err
}

// Create adds a company. A missing slug is derived from the name and made unique.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Company, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessCompanies, rbac.EntityCompanies)
	if err != nil {
		return Company{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Company{}, apperr.Invalid("company name is required")
	}
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	if status != StatusActive && status != StatusPending {
		return Company{}, apperr.Invalid("new companies must be %s or %s", StatusActive, StatusPending)
	}
	slug := strings.TrimSpace(req.Slug)
	if slug != "" && !ValidSlug(slug) {
		return Company{}, apperr.Invalid("invalid slug %q", slug)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c := Company{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		Status:    status,
		Teams:     normalizeTeams(req.Teams),
		IsVendor:  req.IsVendor,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.backend.Run(ctx, "create", func(ctx context.Context) error {
		if c.Slug == "" {
			slug, err := s.uniqueSlug(ctx, Slugify(name))
			if err != nil {
				return err
			}
			c.Slug = slug
		}
		return s.store.Create(ctx, c)
	})
	if err != nil {
		return Company{}, fmt.Errorf("failed to create company: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionCompanyCreate,
		TargetType: audit.TargetCompany,
		TargetID:   c.ID,
		CompanyID:  c.ID,
		Metadata:   map[string]interface{}{"name": c.Name, "slug": c.Slug},
	})
	s.logger.WithFields(map[string]interface{}{
		"company_id": c.ID,
		"slug":       c.Slug,
		"actor_id":   a.ID,
	}).Info("company created")
	return c, nil
}

// Update changes a company's profile
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Company, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessCompanies, rbac.EntityCompanies)
	if err != nil {
		return Company{}, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return Company{}, apperr.Invalid("company name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		updated Company
		changed []string
	)
	err = s.backend.Run(ctx, "update", func(ctx context.Context) error {
		c, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if req.Name != nil && strings.TrimSpace(*req.Name) != c.Name {
			c.Name = strings.TrimSpace(*req.Name)
			changed = append(changed, "name")
		}
		if req.Teams != nil {
			c.Teams = normalizeTeams(*req.Teams)
			changed = append(changed, "teams")
		}
		if req.IsVendor != nil && *req.IsVendor != c.IsVendor {
			c.IsVendor = *req.IsVendor
			changed = append(changed, "is_vendor")
		}
		if req.Metadata != nil {
			if c.Metadata == nil {
				c.Metadata = make(map[string]string, len(req.Metadata))
			}
			for k, v := range req.Metadata {
				if v == "" {
					delete(c.Metadata, k)
				} else {
					c.Metadata[k] = v
				}
			}
			changed = append(changed, "metadata")
		}
		if len(changed) == 0 {
			updated = c
			return nil
		}
		c.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return Company{}, err
	}

	if len(changed) > 0 {
		s.recorder.Record(ctx, audit.Entry{
			Action:     audit.ActionCompanyUpdate,
			TargetType: audit.TargetCompany,
			TargetID:   id,
			CompanyID:  id,
			Metadata:   map[string]interface{}{"fields": strings.Join(changed, ",")},
		})
		s.changed(id)
	}
	return updated, nil
}

// SetStatus toggles a company between active and suspended, or activates a pending one
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (Company, error) {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessCompanies, rbac.EntityCompanies)
	if err != nil {
		return Company{}, err
	}
	if status == StatusDeleted {
		return Company{}, apperr.Invalid("companies are removed with delete, not by status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		updated  Company
		previous Status
	)
	err = s.backend.Run(ctx, "set_status", func(ctx context.Context) error {
		c, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status, status) {
			return apperr.Invalid("cannot change company status from %s to %s", c.Status, status)
		}
		previous = c.Status
		c.Status = status
		c.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return Company{}, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionCompanyStatus,
		TargetType: audit.TargetCompany,
		TargetID:   id,
		CompanyID:  id,
		Metadata:   map[string]interface{}{"from": string(previous), "to": string(status)},
	})
	return updated, nil
}

// Delete permanently removes a company
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := actor.RequireMutation(ctx, rbac.CapAccessCompanies, rbac.EntityCompanies)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted Company
	err = s.backend.Run(ctx, "delete", func(ctx context.Context) error {
		c, err := s.getScoped(ctx, a, id)
		if err != nil {
			return err
		}
		deleted = c
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionCompanyDelete,
		TargetType: audit.TargetCompany,
		TargetID:   id,
		CompanyID:  id,
		Metadata:   map[string]interface{}{"name": deleted.Name, "slug": deleted.Slug},
	})
	s.changed(id)
	s.logger.WithFields(map[string]interface{}{
		"company_id": id,
		"actor_id":   a.ID,
	}).Info("company deleted")
	return nil
}

func (s *Service) getScoped(ctx context.Context, a actor.Actor, id string) (Company, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Company{}, err
	}
	if !a.Scope.Includes(c.ID) {
		return Company{}, apperr.NotFoundf("company", id)
	}
	return c, nil
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		_, err := s.store.GetBySlug(ctx, candidate)
		if apperr.IsKind(err, apperr.NotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apperr.Invalid("could not allocate a slug for %q", base)
}

func (s *Service) changed(id string) {
	if s.onChange != nil {
		s.onChange(id)
	}
}

func normalizeTeams(teams []string) []string {
	seen := make(map[string]bool, len(teams))
	out := make([]string, 0, len(teams))
	for _, t := range teams {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
