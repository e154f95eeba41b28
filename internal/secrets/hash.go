package secrets

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIdentifier returns the hex SHA-256 of value.
func HashIdentifier(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// HashIfSensitive hashes email and phone queries so the raw value is not kept at rest.
func HashIfSensitive(kind, query string) string {
	switch kind {
	case "email", "phone":
		return HashIdentifier(query)
	}
	return query
}

// IsHashed reports whether s looks like a HashIdentifier output.
func IsHashed(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
