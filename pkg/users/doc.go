// Package users administers the user directory: invitations, activation,
// suspension, deactivation and role assignment.
//
// # Lifecycle
//
//	Invited ──activate──▶ Active ◀──unsuspend── Suspended
//	   │                    │ └────suspend────────▲
//	   └──────deactivate────┴──────────────▶ Deactivated (terminal)
//
// The set of Active users holding SYSTEM_ADMIN never becomes empty. Suspending,
// deactivating or removing SYSTEM_ADMIN from the last such user fails with
// apperr.ErrLastAdmin and leaves the directory unchanged.
//
// Every list and get is constrained to the caller's scope before filtering,
// searching and sorting. Users outside the scope report NotFound.
package users
