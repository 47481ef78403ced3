// Package storage configures the entity backends and simulates the mock backend.
//
// The console's entity services talk to a Store per entity. The memory stores
// live next to each service and stand in for a real backend. Simulator adds the
// latency and transient failures such a backend exhibits. Package postgres holds
// the durable implementations of the same Store interfaces.
//
// # Backends
//
//   - memory: in-process stores seeded from the fixture, wrapped by a Simulator
//   - postgres: lib/pq stores over a primary and optional read replicas
//
// Redis is optional in both modes. It backs the distributed rate limiter and is
// reported by the readiness check.
package storage
