package identity

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UnusablePasswordPrefix marks a hash that can never match a password.
const UnusablePasswordPrefix = "!"

var compareHash = bcrypt.CompareHashAndPassword

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if !HasUsablePassword(hash) {
		return CompareDummyPassword(password)
	}
	if err := compareHash([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// CompareDummyPassword runs a full bcrypt comparison against a random hash
// and always returns ErrInvalidCredentials. Callers use it when no stored hash
// exists so the failure costs as much as a wrong password.
func CompareDummyPassword(password string) error {
	dummyHashOnce.Do(func() {
		dummyHash = []byte(RandomPasswordHash())
	})
	_ = compareHash(dummyHash, []byte(password))
	return ErrInvalidCredentials
}

// RandomPasswordHash hashes a throwaway password. Provisional accounts get one
// until profile completion sets a real password.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(strings.ReplaceAll(pwd.String(), "-", ""))
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// HasUsablePassword reports whether hash can ever match a password.
func HasUsablePassword(hash string) bool {
	return hash != "" && !strings.HasPrefix(hash, UnusablePasswordPrefix)
}
