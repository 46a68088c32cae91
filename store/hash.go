package store

import (
	"crypto/sha256"
	"encoding/hex"
)

func hash(b []byte) []byte {
	hash := sha256.Sum256(b)

	return hash[:]
}

// hashString returns a filesystem-safe name derived from s.
func hashString(s string) string {
	return hex.EncodeToString(hash([]byte(s)))
}
