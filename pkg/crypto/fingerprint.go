package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var (
	ErrTooManyArgs      = errors.New("too many arguments. expected only 1")
	ErrEmptyFingerprint = errors.New("token and fingerprint cannot be empty")
)

const (
	DefaultSecretLength = 32 // 256 bits
)

// GenerateSecret returns a random URL-safe string built from byteLength
// random bytes. Used for demo signing keys when none is configured.
func GenerateSecret(byteLength ...int) (string, error) {
	if len(byteLength) > 1 {
		return "", ErrTooManyArgs
	}

	length := DefaultSecretLength
	if len(byteLength) > 0 && byteLength[0] > 0 {
		length = byteLength[0]
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint is the hex SHA-256 of a bearer token. The session profile
// stores it so a token swapped under a stale profile is detected on restore.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyFingerprint compares in constant time.
func VerifyFingerprint(token, fingerprint string) (bool, error) {
	if token == "" || fingerprint == "" {
		return false, ErrEmptyFingerprint
	}

	return subtle.ConstantTimeCompare([]byte(Fingerprint(token)), []byte(fingerprint)) == 1, nil
}
