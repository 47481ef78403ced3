package registrations

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
)

// Store persists registration requests
type Store interface {
	List(ctx context.Context, filter Filter) ([]Request, error)
	Get(ctx context.Context, id string) (Request, error)
	Create(ctx context.Context, r Request) error
	// Decide stores a decided request. It fails if the stored request is already decided.
	Decide(ctx context.Context, r Request) error
}

// ErrAlreadyDecided is returned when a decided request would change
var ErrAlreadyDecided = &apperr.Error{
	Kind:    apperr.Validation,
	Code:    "already_decided",
	Message: "registration request has already been decided",
}

// MemoryStore is the in-memory mock backend
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]Request
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]Request)}
}

// List returns the requests matching filter, newest first
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Request, error) {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	s.mu.RLock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.CompanyName), query) &&
			!strings.Contains(strings.ToLower(r.SubmittedByEmail), query) {
			continue
		}
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Request{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Get returns a request by id
func (s *MemoryStore) Get(ctx context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return Request{}, apperr.NotFoundf("registration request", id)
	}
	return r.Clone(), nil
}

// Create adds a request
func (s *MemoryStore) Create(ctx context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return apperr.Invalid("registration request %q already exists", r.ID)
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

// Decide stores the decision for an undecided request
func (s *MemoryStore) Decide(ctx context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.requests[r.ID]
	if !ok {
		return apperr.NotFoundf("registration request", r.ID)
	}
	if existing.Decided() {
		return ErrAlreadyDecided
	}
	s.requests[r.ID] = r.Clone()
	return nil
}
