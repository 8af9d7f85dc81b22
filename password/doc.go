// Package password hashes and verifies credentials and enforces the
// registration password policy.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes use the standard $2a$/$2b$ modular crypt format.
//
// Every hasher supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters or a legacy algorithm, NeedsUpgrade returns
// true so the caller can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Log plaintext passwords or hash parameters at runtime.
package password
