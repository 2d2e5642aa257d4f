// internal/app/system/authutil/authutil.go
package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the fixed work factor for password hashes.
const BcryptCost = 10

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
// Any error (malformed hash, cost mismatch) is treated as a non-match.
func CheckPassword(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidatePassword enforces the password rules for new passwords.
func ValidatePassword(p string) error {
	if len(p) < MinPasswordLength {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// PasswordRules returns the rules text shown on signup and
// change-password forms.
func PasswordRules() string {
	return "Password must be at least 8 characters long."
}

// ValidEmail is a light structural check: one @, non-empty local part,
// and a dot inside the domain. Deliverability is proven by the
// verification code, not by this check.
func ValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
