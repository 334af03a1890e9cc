// Package password implements password hashing and verification with
// bcrypt.
//
// The [Hasher] supports transparent cost upgrades: if the stored hash was
// produced with a lower cost than currently configured, [Hasher.NeedsUpgrade]
// returns true so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authgate package.
//   - Log plaintext passwords or cost parameters at runtime.
package password
