package auth

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// HashPassword hashes a plaintext password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckPasswordStrength enforces the registration password policy:
// at least 8 characters, no spaces, at least one uppercase letter, one
// digit and one special (non-alphanumeric) character. Returns
// common.ErrPasswordTooWeak on any violation.
func CheckPasswordStrength(password string) error {
	// Length is counted in runes, not bytes, so multibyte characters do
	// not inflate a short password past the minimum.
	if utf8.RuneCountInString(password) < 8 {
		return common.ErrPasswordTooWeak
	}

	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return common.ErrPasswordTooWeak
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			special = true
		}
	}

	if !upper || !digit || !special {
		return common.ErrPasswordTooWeak
	}
	return nil
}
