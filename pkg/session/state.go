package session

import (
	"sync"

	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

// Identity is the actor behind a console session
type Identity struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name,omitempty"`
	Roles       []rbac.Role `json:"roles"`
	Teams       []string    `json:"teams,omitempty"`
	CompanyID   string      `json:"company_id,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
}

func (i Identity) clone() Identity {
	out := i
	out.Roles = append([]rbac.Role(nil), i.Roles...)
	out.Teams = append([]string(nil), i.Teams...)
	return out
}

// Change describes a role switch delivered to subscribers
type Change struct {
	Previous rbac.Role
	Current  rbac.Role
	Identity Identity
}

// Provider is the contract downstream components depend on
type Provider interface {
	CurrentIdentity() Identity
	CurrentRole() rbac.Role
	SwitchRole(role rbac.Role)
	HasRole(role rbac.Role) bool
	HasAnyRole(roles ...rbac.Role) bool
	Subscribe(fn func(Change)) (unsubscribe func())
}

type subscriber struct {
	id int
	fn func(Change)
}

// State holds one session's identity and selected role.
//
// SwitchRole is the only writer. Subscribers are called synchronously, in
// subscription order, before SwitchRole returns. Switches are serialized, and a
// subscriber must not call SwitchRole on the same State.
type State struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex
	identity    Identity
	role        rbac.Role
	subscribers []subscriber
	nextID      int
	logger      *observability.Logger
	// assignedOnly limits switches to the identity's assigned roles
	assignedOnly bool
}

// StateOption configures a State
type StateOption func(*State)

// WithAssignedRolesOnly refuses switches to roles the identity was not assigned.
// Without it any console role can be selected, which is the dev console behavior.
func WithAssignedRolesOnly() StateOption {
	return func(s *State) {
		s.assignedOnly = true
	}
}

var _ Provider = (*State)(nil)

// NewState creates a session state established with the identity and starting role.
// A starting role outside the console catalog falls back to defaultRole.
func NewState(identity Identity, role, defaultRole rbac.Role, logger *observability.Logger, opts ...StateOption) *State {
	if !rbac.ConsoleCatalog().Contains(role) {
		role = defaultRole
	}
	s := &State{
		identity: identity.clone(),
		role:     role,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentIdentity returns the identity with its role slot set to the selected role
func (s *State) CurrentIdentity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.identity.clone()
	id.Roles = []rbac.Role{s.role}
	return id
}

// CurrentRole returns the selected console role
func (s *State) CurrentRole() rbac.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// CanSwitchTo reports whether SwitchRole would accept role
func (s *State) CanSwitchTo(role rbac.Role) bool {
	if !rbac.ConsoleCatalog().Contains(role) {
		return false
	}
	if !s.assignedOnly {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return role == s.role || containsRole(s.identity.Roles, role)
}

// SwitchRole replaces the selected role and notifies subscribers.
// Roles outside the console catalog are logged and ignored, as are unassigned
// roles when the state was created WithAssignedRolesOnly.
func (s *State) SwitchRole(role rbac.Role) {
	if !rbac.ConsoleCatalog().Contains(role) {
		s.logger.WithField("role", string(role)).Warn("ignoring switch to unknown role")
		return
	}
	if !s.CanSwitchTo(role) {
		s.logger.WithFields(map[string]interface{}{
			"role":     string(role),
			"identity": s.CurrentIdentity().ID,
		}).Warn("refusing switch to unassigned role")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	change := Change{Previous: s.role, Current: role}
	s.role = role
	change.Identity = s.identity.clone()
	change.Identity.Roles = []rbac.Role{role}
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"from": string(change.Previous),
		"to":   string(role),
	}).Info("session role switched")

	for _, sub := range subs {
		sub.fn(change)
	}
}

// HasRole reports whether the role is the selected role
func (s *State) HasRole(role rbac.Role) bool {
	return s.CurrentRole() == role
}

// HasAnyRole reports whether any of the roles is the selected role
func (s *State) HasAnyRole(roles ...rbac.Role) bool {
	current := s.CurrentRole()
	for _, r := range roles {
		if r == current {
			return true
		}
	}
	return false
}

// Subscribe registers fn for role changes and returns a function that removes it
func (s *State) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// AssignedRoles returns the console roles granted to the identity by its source
func (s *State) AssignedRoles() []rbac.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]rbac.Role(nil), s.identity.Roles...)
}

func containsRole(roles []rbac.Role, role rbac.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
