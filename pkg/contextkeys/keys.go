// Package contextkeys provides centralized context key definitions
//
// All context keys used across the hub are defined here so that key usage is
// discoverable and typed helpers exist for each value.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/integrationhub/pkg/contextkeys"
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the acting user's id
	// Set by: middleware.SessionMiddleware
	// Used by: Logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: server bootstrap
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// SessionKey contains *session.State for the request's console session
	// Set by: middleware.SessionMiddleware
	// Required by: session and view gate handlers
	// Type: *session.State
	SessionKey Key = "session"

	// SessionIDKey contains the console session id
	// Set by: middleware.SessionMiddleware
	// Type: string
	SessionIDKey Key = "session_id"

	// ActorKey contains actor.Actor, the identity, role and scope performing an operation
	// Set by: middleware.SessionMiddleware, background jobs
	// Required by: entity services
	// Type: actor.Actor
	ActorKey Key = "actor"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithSession adds the session state to the context
func WithSession(ctx context.Context, state interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, state)
}

// WithSessionID adds the session id to the context
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// WithActor adds the acting principal to the context
func WithActor(ctx context.Context, actor interface{}) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetSessionID retrieves the session id from context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
