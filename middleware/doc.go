// Package middleware adapts goToken authentication to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer token and stores the identity in the request context.
//   - [RequireRole] rejects identities that lack a role; it must run after Guard.
//   - [ClientIP] records the caller's address so login and registration
//     throttling can key on it.
//
// All decisions are delegated to the engine; this package never parses tokens
// and performs no I/O.
package middleware
