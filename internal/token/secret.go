package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"
)

const secretEntropyBytes = 32

// NewSecret returns a freshly generated random secret. The caller hashes it
// for storage and hands the raw value to the user exactly once.
func NewSecret() (string, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret computes the one-way hash persisted in place of the secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifySecret reports whether candidate hashes to storedHash. The
// comparison is constant-time; a short-circuiting equality here would leak
// the position of the first differing byte.
func VerifySecret(storedHash, candidate string) bool {
	sum := sha256.Sum256([]byte(candidate))
	actual := hex.EncodeToString(sum[:])
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}

// Expired reports whether a token whose lifetime ends at expiresAt is dead
// at instant now. The boundary is inclusive: expiresAt == now is expired.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}
