// Package internal holds the private building blocks behind goToken.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for Register, Login and Authenticate
//   - rate: login and registration throttling over Redis or process memory
//   - logging: zap logger construction for the binaries
//   - fileconfig: YAML/.env configuration for cmd/gotoken
//   - httpapi: chi router served by cmd/gotoken
package internal
