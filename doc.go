// Package goToken is a credential-issuance and token-verification core: it
// registers users, verifies passwords, mints signed, time-bounded tokens and
// verifies those tokens on inbound requests, independent of any web framework.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Identity], [Token], [MetricsSnapshot]). Key material lives in
// the keystore package, wire encoding and verification in the jwt package,
// hashing in the password package. Flow orchestration, rate limiting and
// audit dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose signing key material. Keys only sign and verify.
//   - Tell a caller whether a login failed because the identifier is unknown
//     or because the password is wrong. Both surface as [ErrInvalidCredential].
//   - Import any sub-package that re-imports goToken (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. It resolves the key from an immutable table
// snapshot without locks and performs no I/O. Register and Login perform one
// provider round-trip plus the rate-limit counter calls.
package goToken
