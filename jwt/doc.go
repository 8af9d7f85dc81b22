// Package jwt encodes, issues and verifies compact JWS access tokens signed
// with keys resolved from a keystore table.
//
// Verification is a pure function of the raw token, one key-table snapshot
// and one clock reading. Every step short-circuits and returns a typed error.
package jwt
