package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
)

// NewNumericCode returns a fixed-width numeric recovery code drawn
// uniformly from [0, 10^digits). Leading zeros are preserved, so every
// code is exactly digits characters long.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	bound := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		bound.Mul(bound, ten)
	}

	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashRecoveryCode returns the SHA-256 digest stored in place of the
// plaintext code.
func HashRecoveryCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// IsNumericString reports whether v consists only of ASCII digits.
func IsNumericString(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return len(v) > 0
}
