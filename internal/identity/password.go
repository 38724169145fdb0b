package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
	hashPrefix   = "scrypt"
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword returns "scrypt:<salt hex>:<key hex>" for a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hashWithSalt(password, salt)
}

func hashWithSalt(password string, salt []byte) (string, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return hashPrefix + ":" + hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches encoded. The derived keys are
// compared in constant time.
func VerifyPassword(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return false, errMalformedHash
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false, errMalformedHash
	}

	got, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false, fmt.Errorf("failed to derive key: %w", err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
