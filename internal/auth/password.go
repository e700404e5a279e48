package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords using bcrypt. Plaintext passwords are never logged or stored.
type PasswordHasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher returns a PasswordHasher with the given bcrypt cost, clamped to bcrypt's bounds.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether password matches the stored hash. Malformed hashes never match.
func (h *PasswordHasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyHash returns a hash at the hasher's cost that no submitted password matches.
// Comparing against it keeps unknown and inactive accounts as slow as a wrong password.
func (h *PasswordHasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		token, _, err := GenerateSessionToken()
		if err != nil {
			token = "unusable-password"
		}
		b, err := bcrypt.GenerateFromPassword([]byte(token), h.Cost)
		if err == nil {
			h.dummy = string(b)
		}
	})
	return h.dummy
}
