// Package jwt issues and verifies the bearer tokens handed out on login,
// with strict validation semantics suitable for low-latency authentication
// paths. The account email travels as the subject claim.
package jwt
