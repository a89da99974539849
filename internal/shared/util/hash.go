package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey is the hex SHA-256 of s. Owner ids are hashed before they reach
// object keys, and reset tokens are stored only in this form.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
