// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email lowercases and trims an email address. Lookups and writes of the
// users collection must go through this so the email uniqueness constraint
// is case-insensitive.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role lowercases and trims a role value (admin | moderator | user).
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a status value (active | blocked | pending).
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Provider lowercases and trims a social provider name
// (google | twitter | github).
func Provider(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
