// Package notify delivers recovery codes to account holders.
//
// [SMTP] sends codes over plain SMTP with optional STARTTLS and AUTH.
// The Engine calls Deliver off the request path, so a slow or failing
// mail server never delays the recovery endpoint.
//
// # What this package must NOT do
//
//   - Generate, hash, or validate codes (the Engine owns code lifecycle).
//   - Log the plaintext code.
package notify
