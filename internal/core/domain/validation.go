package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validEmailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateIdentity checks the required identity attributes of an issuance
// request. Missing fields are a client error, not a system fault.
func ValidateIdentity(name, email string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return ErrMissingIdentity
	}
	return ValidateEmail(email)
}

// ValidateEmail checks that the address has a plausible mailbox@domain shape.
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email exceeds 254 characters")
	}
	if !validEmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

// NormalizeEmail canonicalizes an address for storage and lookup. One license
// per email is enforced on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
