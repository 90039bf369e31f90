package password

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultExpiryDays is the password age, in days, after which a change is forced.
	DefaultExpiryDays = 90
	// DefaultHistorySize is how many previous hashes are checked for reuse.
	DefaultHistorySize = 12
)

// ErrTooWeak is returned when a candidate password contains a denylisted term.
var ErrTooWeak = errors.New("password too weak")

// DefaultDenylist holds the terms rejected when no organization list is configured.
var DefaultDenylist = []string{
	"password",
	"123456",
	"12345678",
	"qwerty",
	"letmein",
	"welcome",
	"changeme",
	"iloveyou",
	"abc123",
	"admin",
	"monkey",
	"dragon",
	"football",
	"baseball",
	"onboarding",
}

// IsExpired reports whether a password last changed at changedAt has reached
// expiryDays of age at now. expiryDays <= 0 disables expiry.
func IsExpired(changedAt, now time.Time, expiryDays int) bool {
	if expiryDays <= 0 {
		return false
	}
	if changedAt.IsZero() {
		return true
	}
	return now.Sub(changedAt) >= time.Duration(expiryDays)*24*time.Hour
}

// CheckStrength rejects passwords that are too short or contain any denylisted term.
// The denylist match is a case-insensitive substring test.
func CheckStrength(plaintext string, denylist []string) error {
	if len(plaintext) < MinLength {
		return ErrTooShort
	}
	lower := strings.ToLower(plaintext)
	for _, term := range denylist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(lower, term) {
			return ErrTooWeak
		}
	}
	return nil
}
