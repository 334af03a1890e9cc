// Package authgate provides bearer-token authentication and code-based
// password recovery for account-owning services. It issues and verifies
// signed JWT access tokens, binds authenticated identities to request
// contexts through HTTP middleware, and drives a single-use, expiring
// recovery-code state machine backed by Redis.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] and [Notifier] collaborator contracts, and value types
// (Identity, AuditEvent, MetricsSnapshot). Token signing lives in the jwt
// sub-package, request interception in middleware, password hashing in
// password, and code delivery in notify.
//
// # What this package must NOT do
//
//   - Expose Redis clients, challenge records, or encoding details in its
//     public API.
//   - Return a recovery code to the caller of RequestRecovery; codes travel
//     only through the configured [Notifier].
//   - Block RequestRecovery on notifier latency; delivery runs off the
//     response path.
package authgate
