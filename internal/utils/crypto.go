// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// GenerateNonce returns 16 random bytes, hex encoded.
func GenerateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func HashString(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// DigestsMatch compares a computed "sha256:<hex>" digest with a recorded one.
func DigestsMatch(actual, recorded string) bool {
	a, ok := strings.CutPrefix(actual, "sha256:")
	if !ok {
		return false
	}
	r, ok := strings.CutPrefix(recorded, "sha256:")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(r))) == 1
}
