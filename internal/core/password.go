package core

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured.
const DefaultHashCost = 10

// bcryptPrefix matches the modular crypt tag and cost of a bcrypt hash.
var bcryptPrefix = regexp.MustCompile(`^\$2[aby]\$\d{2}\$`)

// bcryptHashLen is the length of a complete bcrypt hash string.
const bcryptHashLen = 60

// PasswordHasher turns plaintext credentials into bcrypt hashes and leaves
// values that are already hashed untouched.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("hash cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordHasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *PasswordHasher) Cost() int { return h.cost }

// IsHashed reports whether value is a bcrypt hash.
func IsHashed(value string) bool {
	return len(value) == bcryptHashLen && bcryptPrefix.MatchString(value)
}

// EnsureHashed returns value unchanged when it is already a bcrypt hash,
// otherwise its bcrypt hash.
func (h *PasswordHasher) EnsureHashed(value string) (string, error) {
	if value == "" {
		return "", ErrEmptyCredential
	}
	if IsHashed(value) {
		return value, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(value), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash.
func (h *PasswordHasher) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
