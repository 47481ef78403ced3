// Package session holds the console session: the acting identity, the selected role,
// and the observers that react when the role changes.
//
// A State is created per console session and injected into every consumer.
// There is no package-level session.
//
//	state := session.NewState(identity, rbac.RoleSystemAdministrator, cfg.DefaultRole, logger)
//	unsubscribe := state.Subscribe(func(c session.Change) { ... })
//	state.SwitchRole(rbac.RoleBusinessViewer) // subscribers have run when this returns
//
// Identities come from an IdentitySource: DevSource for local development, or
// TokenSource verifying OIDC ID tokens in production.
package session
