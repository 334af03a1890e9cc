// Package middleware exposes HTTP adapters for bearer-token enforcement
// built on top of authgate.Engine verification.
//
// [Authenticate] reads the Authorization header, calls Engine.VerifyToken,
// and binds the resolved identity into the request context. Requests
// without a bearer header pass through anonymously; [RequireIdentity]
// turns anonymity into a 401 for protected routes.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Touch the account store or Redis (Engine handles I/O).
//   - Make authorization decisions beyond authenticated or not.
package middleware
