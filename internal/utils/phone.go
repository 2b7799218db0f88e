package utils

import (
	"errors"
	"strings"
)

const minPhoneDigits = 10

// ErrInvalidPhone marks a phone number that fails basic format validation.
var ErrInvalidPhone = errors.New("phone number must be at least 10 digits")

// NormalizePhone strips every non-digit character and enforces a minimum
// length. All storage and lookups use the normalized form so that
// "0912 345 6789" and "09123456789" resolve to the same account.
func NormalizePhone(raw string) (string, error) {
	cleaned := Digits(raw)
	if len(cleaned) < minPhoneDigits {
		return "", ErrInvalidPhone
	}

	return cleaned, nil
}

// Digits returns only the decimal digits of a string.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
