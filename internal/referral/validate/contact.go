// Package validate holds reusable contact format predicates and
// normalizers. The referral factory only trims values; these predicates
// exist for callers that want stricter checks.
package validate

import (
	"regexp"
	"strings"

	"capref/internal/referral/models"
)

var (
	// emailPattern accepts a simple local@domain.tld shape; full RFC 5322
	// parsing is deliberately out of scope.
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// phonePattern accepts E.164-like numbers: leading +, first digit
	// 1-9, 8 to 15 digits total.
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// IsValidEmail reports whether value looks like an email address.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// IsValidPhone reports whether value looks like an E.164 phone number.
func IsValidPhone(value string) bool {
	return phonePattern.MatchString(strings.TrimSpace(value))
}

// NormalizeEmail lowers and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims a phone number. Digits are kept as provided.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// NormalizeContact normalizes a contact value according to its type.
// Unknown types are trimmed only.
func NormalizeContact(contactType, contactValue string) string {
	switch contactType {
	case models.ContactTypeEmail:
		return NormalizeEmail(contactValue)
	case models.ContactTypeSMS:
		return NormalizePhone(contactValue)
	default:
		return strings.TrimSpace(contactValue)
	}
}
