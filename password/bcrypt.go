package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when the caller passes zero.
const DefaultCost = 12

// bcrypt truncates input beyond 72 bytes; longer passwords are rejected
// outright rather than silently weakened.
const maxPasswordBytes = 72

// Hasher hashes and verifies passwords at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost. A zero cost selects
// [DefaultCost].
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password: empty password")
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("password: longer than %d bytes", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. A mismatch is
// (false, nil); errors are reserved for malformed hashes.
func (h *Hasher) Verify(plaintext, hash string) (bool, error) {
	if len(plaintext) > maxPasswordBytes {
		return false, fmt.Errorf("password: longer than %d bytes", maxPasswordBytes)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("password: verify: %w", err)
}

// NeedsUpgrade reports whether the stored hash was produced with a lower
// cost than this Hasher is configured for.
func (h *Hasher) NeedsUpgrade(hash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("password: inspect cost: %w", err)
	}
	return cost < h.cost, nil
}
