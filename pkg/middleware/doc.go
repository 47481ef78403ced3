// Package middleware provides HTTP middleware for console sessions and rate limiting.
//
// # Middleware Components
//
// SessionMiddleware: attaches the console session to the request
//
//	sessions := middleware.NewSessionMiddleware(lookup, logger)
//	router.Use(sessions.Handler)            // optional session
//	protected.Use(sessions.Require)         // 401 without a session
//	// adds the session state, session id and actor.Actor to the context
//
// RateLimitMiddleware: in-memory token buckets (golang.org/x/time/rate)
//
//	limiter := middleware.NewRateLimitMiddleware()
//	router.Use(limiter.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed fixed windows shared by all instances
//
//	limiter := middleware.NewDistributedRateLimitMiddleware(redisClient, logger)
//	router.Use(limiter.Handler)
//
// # Rate Limiting
//
// Requests are keyed by the acting user when a session is attached, otherwise by
// client IP.
//
// Default (no session): 100 req/min, 10 burst
// Per-User: 1000 req/min, 50 burst
//
// Rate limiting must run after SessionMiddleware to see the actor.
//
// # Related Packages
//
//   - pkg/session: console session state
//   - pkg/actor: the principal entity services authorize against
package middleware
