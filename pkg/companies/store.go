package companies

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
)

// Store persists companies. Delete removes the record permanently.
type Store interface {
	List(ctx context.Context, filter Filter) ([]Company, error)
	Get(ctx context.Context, id string) (Company, error)
	GetBySlug(ctx context.Context, slug string) (Company, error)
	Create(ctx context.Context, c Company) error
	Update(ctx context.Context, c Company) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-memory mock backend
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[string]Company
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{companies: make(map[string]Company)}
}

// List returns the companies matching filter
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Company, error) {
	s.mu.RLock()
	all := make([]Company, 0, len(s.companies))
	for _, c := range s.companies {
		all = append(all, c.Clone())
	}
	s.mu.RUnlock()
	return Apply(all, filter), nil
}

// Get returns a company by id
func (s *MemoryStore) Get(ctx context.Context, id string) (Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return Company{}, apperr.NotFoundf("company", id)
	}
	return c.Clone(), nil
}

// GetBySlug returns a company by slug
func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.companies {
		if c.Slug == slug {
			return c.Clone(), nil
		}
	}
	return Company{}, apperr.NotFoundf("company", slug)
}

// Create adds a company
func (s *MemoryStore) Create(ctx context.Context, c Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.companies[c.ID]; exists {
		return apperr.Invalid("company %q already exists", c.ID)
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	s.companies[c.ID] = c.Clone()
	return nil
}

// Update replaces a company
func (s *MemoryStore) Update(ctx context.Context, c Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[c.ID]; !ok {
		return apperr.NotFoundf("company", c.ID)
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	s.companies[c.ID] = c.Clone()
	return nil
}

// Delete removes a company
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return apperr.NotFoundf("company", id)
	}
	delete(s.companies, id)
	return nil
}

func (s *MemoryStore) checkUnique(c Company) error {
	for _, existing := range s.companies {
		if existing.ID == c.ID {
			continue
		}
		if existing.Slug == c.Slug {
			return apperr.Invalid("slug %q is already taken", c.Slug)
		}
		if strings.EqualFold(existing.Name, c.Name) {
			return apperr.Invalid("a company named %q already exists", c.Name)
		}
	}
	return nil
}

// Apply filters, sorts and pages companies in memory
func Apply(all []Company, filter Filter) []Company {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]Company, 0, len(all))
	for _, c := range all {
		if filter.ID != "" && c.ID != filter.ID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.IsVendor != nil && c.IsVendor != *filter.IsVendor {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) && !strings.Contains(c.Slug, query) {
			continue
		}
		out = append(out, c)
	}

	less := func(a, b Company) bool {
		var cmp int
		switch filter.SortBy {
		case SortByStatus:
			cmp = strings.Compare(string(a.Status), string(b.Status))
		case SortByCreatedAt:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		default:
			cmp = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if cmp == 0 {
			return a.ID < b.ID
		}
		return cmp < 0
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Company{}
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}
