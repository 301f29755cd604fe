package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and checks passwords with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given bcrypt cost.
// Out of range costs fall back to the default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the bcrypt work factor
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// HashPassword will generate a password hash
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ValidationError(ErrValidation, map[string]any{"password": "cannot be blank"})
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ValidationError(err, map[string]any{"password": "must be at most 72 bytes"})
		}
		return "", err
	}
	return string(out), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

var defaultHasher = NewPasswordHasher(0)

// HashPassword hashes with the default hasher
func HashPassword(password string) (string, error) {
	return defaultHasher.HashPassword(password)
}

// ComparePasswordAndHash compares with the default hasher
func ComparePasswordAndHash(password, hash string) error {
	return defaultHasher.ComparePasswordAndHash(password, hash)
}

var _ PasswordAuthenticator = (*PasswordHasher)(nil)
