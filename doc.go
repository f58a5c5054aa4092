// Package tierauth issues, verifies, rotates, and invalidates signed session
// tokens across tiered expiration windows, keeps the current token mirrored
// between a durable cookie and a volatile per-request session, and binds an
// authenticated user identity to the active token record.
//
// The package is designed for concurrent server workloads: Lifecycle methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. Each request is expected to carry its own [SessionSync]
// and a context annotated with [WithClientAddress] and [WithUserAgent].
//
// # Architecture boundaries
//
// tierauth is the public surface. It exposes [Lifecycle], [Builder], [Config],
// the [TokenStore] and [UserDirectory] collaborator interfaces, and value
// types (TokenRecord, Identity, MetricsSnapshot). Token signing lives in the
// token sub-package, fingerprint derivation in fingerprint, concrete stores in
// store, and the net/http cookie binding in websession.
//
// # What this package must NOT do
//
//   - Persist token records itself; durability belongs to the [TokenStore]
//     implementation supplied by the caller.
//   - Render responses or route requests; it only mutates the injected
//     [SessionSync].
//   - Trust a decoded payload without confirming the literal token string is
//     known to the store.
package tierauth
