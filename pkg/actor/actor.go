// Package actor carries the principal performing an entity operation through context.
package actor

import (
	"context"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
	"github.com/platinummonkey/integrationhub/pkg/contextkeys"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/scope"
	"github.com/platinummonkey/integrationhub/pkg/session"
)

// SystemID is the actor id recorded for scheduled jobs and seeding
const SystemID = "system"

// Actor is the identity, role and scope behind an operation
type Actor struct {
	ID    string
	Email string
	Role  rbac.Role
	Scope scope.Scope
}

// New builds an actor from a session identity and its resolved scope
func New(identity session.Identity, role rbac.Role, s scope.Scope) Actor {
	return Actor{
		ID:    identity.ID,
		Email: identity.Email,
		Role:  role,
		Scope: s,
	}
}

// System is the global actor used by background jobs
func System() Actor {
	return Actor{
		ID:    SystemID,
		Role:  rbac.TopConsoleRole,
		Scope: scope.Scope{Kind: scope.Global},
	}
}

// Can reports whether the actor's role holds the capability
func (a Actor) Can(capability rbac.Capability) bool {
	return rbac.Allowed(a.Role, capability)
}

// CanMutate reports whether the actor's role may change entities of the class
func (a Actor) CanMutate(class rbac.EntityClass) bool {
	return rbac.CanMutate(a.Role, class)
}

// WithActor adds the actor to the context
func WithActor(ctx context.Context, a Actor) context.Context {
	ctx = contextkeys.WithActor(ctx, a)
	return contextkeys.WithUserID(ctx, a.ID)
}

// FromContext returns the actor carried by the context
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextkeys.ActorKey).(Actor)
	return a, ok
}

// ErrNoActor is returned when an operation runs without an acting session
var ErrNoActor = apperr.New(apperr.PolicyViolation, "no active session")

// Require returns the actor in ctx if its role holds capability
func Require(ctx context.Context, capability rbac.Capability) (Actor, error) {
	a, ok := FromContext(ctx)
	if !ok {
		return Actor{}, ErrNoActor
	}
	if !a.Can(capability) {
		return a, apperr.Denied(string(capability), rbac.DisabledReason(a.Role, capability))
	}
	return a, nil
}

// RequireMutation is Require plus a check that the role may change entities of class
func RequireMutation(ctx context.Context, capability rbac.Capability, class rbac.EntityClass) (Actor, error) {
	a, err := Require(ctx, capability)
	if err != nil {
		return a, err
	}
	if !a.CanMutate(class) {
		return a, apperr.Denied(string(rbac.CapReadOnlyMode), rbac.ReadOnlyReason(a.Role, class))
	}
	return a, nil
}
