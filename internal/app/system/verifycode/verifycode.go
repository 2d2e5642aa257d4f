// internal/app/system/verifycode/verifycode.go
package verifycode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// Expiry is how long a verification code is valid.
	Expiry = 10 * time.Minute
	// Cooldown is the minimum wait between successive code issuances.
	Cooldown = 2 * time.Minute
)

var codeSpace = big.NewInt(1_000_000)

// Issue generates a uniformly random zero-padded 6-digit code
// ("000000".."999999") expiring Expiry after now.
// Panics if the system's cryptographic random number generator fails.
func Issue(now time.Time) (code string, expiresAt time.Time) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return fmt.Sprintf("%06d", n.Int64()), now.Add(Expiry)
}

// IsValid reports whether a submitted code matches the stored code and has
// not expired. An empty stored code never matches (no pending cycle).
func IsValid(submitted, stored string, expiresAt, now time.Time) bool {
	if stored == "" || submitted != stored {
		return false
	}
	return now.Before(expiresAt)
}

// ResendAllowed reports whether a new code may be issued given the expiry
// of the previous one. Only the expiry is stored, so issuance time is
// reconstructed as expiresAt - Expiry; a zero expiresAt means no code is
// pending and resend is always allowed.
//
// If Expiry ever changes, this reconstruction must change with it; keeping
// both constants in this package is what holds the formula together.
func ResendAllowed(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return true
	}
	issuedAt := expiresAt.Add(-Expiry)
	return !now.Before(issuedAt.Add(Cooldown))
}
