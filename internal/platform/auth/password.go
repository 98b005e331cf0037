package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies account passwords with bcrypt.
// The cost factor is fixed at construction; raising it slows every
// hash and verify, which is the point.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Costs outside bcrypt's supported range fall back to the library
// default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a bcrypt digest from the password. Each call produces
// a different digest for the same input because bcrypt embeds a fresh
// salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify reports whether password matches the stored digest. It never
// returns an error: a malformed or truncated digest verifies as false,
// same as a wrong password.
func (h *PasswordHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// ValidatePasswordStrength enforces password complexity rules:
// - Minimum 8 characters
// - At least 1 uppercase letter
// - At least 1 lowercase letter
// - At least 1 digit
func ValidatePasswordStrength(password string) error {
	var (
		hasUpper bool
		hasLower bool
		hasDigit bool
	)

	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	var failures []string

	if len(password) < 8 {
		failures = append(failures, "at least 8 characters")
	}
	if !hasUpper {
		failures = append(failures, "at least 1 uppercase letter")
	}
	if !hasLower {
		failures = append(failures, "at least 1 lowercase letter")
	}
	if !hasDigit {
		failures = append(failures, "at least 1 digit")
	}

	if len(failures) > 0 {
		return fmt.Errorf("password must contain %s", strings.Join(failures, ", "))
	}

	return nil
}
