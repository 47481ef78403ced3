// Package audit records an append-only trail of every mutation made to users,
// companies, registrations and invitations.
//
// Services call Recorder.Record after a successful mutation. The recorder
// appends the event to a Store (memory or PostgreSQL) and fans it out to
// additional sinks such as the rotating NDJSON FileLogger. Events are never
// updated or deleted.
//
// Handlers serve GET /api/audit with scope-constrained filters and JSON, NDJSON
// or CSV export.
package audit
