// Package store provides concrete TokenStore implementations: an in-memory
// store for tests and embedding, a Redis-backed store with automatic record
// expiry, and a PostgreSQL store for deployments that need durable audit
// history.
//
// # Design
//
// All three implement tierauth.TokenStore with the same filter semantics:
// exact match on token, address, and user agent, an "active at" expiry
// predicate, newest-first ordering, and an optional result limit. IDs are
// assigned on Insert as UUIDs.
//
// # What this package must NOT do
//
//   - Decode or verify token strings; they are opaque row keys here.
//   - Make rotation or fraud decisions; that belongs to the Lifecycle.
package store
