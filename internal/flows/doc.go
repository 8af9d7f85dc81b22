// Package flows contains the orchestration for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunAuthenticate) accepts a typed
// dependency struct of plain functions and returns results without side-effects
// beyond those dependencies. The root package owns every resource and builds
// the dependency structs once at construction time.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root goToken package (import cycle).
//   - Perform I/O directly. Provider, rate-limiter and audit calls go through
//     the dependency functions.
package flows
