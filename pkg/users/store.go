package users

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
)

// Store persists user records. List applies the filter, including sort and paging.
type Store interface {
	List(ctx context.Context, filter Filter) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	// UpdateRetainingAdmin replaces u unless no Active System Admin would remain,
	// returning apperr.ErrLastAdmin. The count and the write are atomic.
	UpdateRetainingAdmin(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
	CountActiveAdmins(ctx context.Context) (int, error)
}

// MemoryStore is the in-memory mock backend
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

// List returns the users matching filter
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]User, error) {
	s.mu.RLock()
	all := make([]User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u.Clone())
	}
	s.mu.RUnlock()
	return Apply(all, filter), nil
}

// Get returns a user by id
func (s *MemoryStore) Get(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.NotFoundf("user", id)
	}
	return u.Clone(), nil
}

// GetByEmail returns a user by email, case-insensitively
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u.Clone(), nil
		}
	}
	return User{}, apperr.NotFoundf("user", email)
}

// Create adds a user
func (s *MemoryStore) Create(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return apperr.Invalid("user %q already exists", u.ID)
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Invalid("a user with email %q already exists", u.Email)
		}
	}
	s.users[u.ID] = u.Clone()
	return nil
}

// Update replaces a user
func (s *MemoryStore) Update(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return apperr.NotFoundf("user", u.ID)
	}
	for _, existing := range s.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return apperr.Invalid("a user with email %q already exists", u.Email)
		}
	}
	s.users[u.ID] = u.Clone()
	return nil
}

// UpdateRetainingAdmin replaces u while at least one Active System Admin remains
func (s *MemoryStore) UpdateRetainingAdmin(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return apperr.NotFoundf("user", u.ID)
	}
	if !u.IsActiveAdmin() {
		others := 0
		for id, existing := range s.users {
			if id != u.ID && existing.IsActiveAdmin() {
				others++
			}
		}
		if others == 0 {
			return apperr.ErrLastAdmin
		}
	}
	s.users[u.ID] = u.Clone()
	return nil
}

// Delete removes a user
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return apperr.NotFoundf("user", id)
	}
	delete(s.users, id)
	return nil
}

// CountActiveAdmins counts Active users holding SYSTEM_ADMIN
func (s *MemoryStore) CountActiveAdmins(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.IsActiveAdmin() {
			n++
		}
	}
	return n, nil
}

// Apply filters, sorts and pages users in memory
func Apply(all []User, filter Filter) []User {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]User, 0, len(all))
	for _, u := range all {
		if filter.CompanyID != "" && u.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Role != "" && !u.HasRole(filter.Role) {
			continue
		}
		if query != "" && !matchesQuery(u, query) {
			continue
		}
		out = append(out, u)
	}

	less := lessFunc(filter.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		if filter.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []User{}
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}

func matchesQuery(u User, query string) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.FullName(), u.Email, u.CompanyName} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func lessFunc(field SortField) func(a, b User) bool {
	byID := func(a, b User) bool { return a.ID < b.ID }
	tie := func(cmp int, a, b User) bool {
		if cmp != 0 {
			return cmp < 0
		}
		return byID(a, b)
	}
	switch field {
	case SortByEmail:
		return func(a, b User) bool {
			return tie(strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)), a, b)
		}
	case SortByStatus:
		return func(a, b User) bool { return tie(strings.Compare(string(a.Status), string(b.Status)), a, b) }
	case SortByCompany:
		return func(a, b User) bool {
			return tie(strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName)), a, b)
		}
	case SortByCreatedAt:
		return func(a, b User) bool { return tie(a.CreatedAt.Compare(b.CreatedAt), a, b) }
	case SortByLastLogin:
		return func(a, b User) bool {
			var at, bt int64
			if a.LastLoginAt != nil {
				at = a.LastLoginAt.UnixNano()
			}
			if b.LastLoginAt != nil {
				bt = b.LastLoginAt.UnixNano()
			}
			return tie(compareInt64(at, bt), a, b)
		}
	default:
		return func(a, b User) bool {
			return tie(strings.Compare(strings.ToLower(a.FullName()), strings.ToLower(b.FullName())), a, b)
		}
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
