package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
)

const resetTokenBytes = 32

// GenerateResetToken returns a 256-bit random secret in URL-safe encoding.
// The raw value goes out-of-band to the user; only its digest is stored.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashResetToken is a fast deterministic digest, not an adaptive hash:
// reset tokens are high-entropy random values, so offline brute force is
// not the threat model bcrypt exists for.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyResetToken recomputes the digest and compares in constant time.
// A length mismatch returns false rather than erroring.
func VerifyResetToken(token, storedHash string) bool {
	computed := HashResetToken(token)
	if len(computed) != len(storedHash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// GenerateNonce returns a random value for OAuth state binding.
func GenerateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
