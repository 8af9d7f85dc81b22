// Package keystore holds token signing keys and supports atomic rotation.
//
// A [Store] publishes an immutable [Table] through an atomic pointer. Readers
// resolve keys against a single snapshot without locking; writers copy the
// table, apply the change and swap the pointer, so a reader observes either
// the old table or the new one, never a mix of both.
//
// Exactly one key in a table is current and used for issuance. Every key whose
// validity window contains the verification time can be resolved by its key id,
// which keeps tokens signed just before a rotation verifiable.
//
// # What this package must NOT do
//
//   - Return raw secret or private key material. Callers sign and verify
//     through [SigningKey] methods only.
//   - Perform I/O. Persistence of key material belongs to the caller.
package keystore
