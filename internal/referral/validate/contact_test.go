package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"capref/internal/referral/models"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"pat@example.com",
		"pat.lee+referrals@sub.example.co.uk",
		"  padded@example.com  ",
	}
	for _, email := range valid {
		assert.True(t, IsValidEmail(email), "expected %q to be valid", email)
	}

	invalid := []string{
		"",
		"plainstring",
		"@example.com",
		"pat@",
		"pat@example",
		"pat lee@example.com",
		"pat@@example.com",
	}
	for _, email := range invalid {
		assert.False(t, IsValidEmail(email), "expected %q to be invalid", email)
	}
}

func TestIsValidPhone(t *testing.T) {
	valid := []string{
		"+15551234567",
		"+442071838750",
		" +4915123456789 ",
	}
	for _, phone := range valid {
		assert.True(t, IsValidPhone(phone), "expected %q to be valid", phone)
	}

	invalid := []string{
		"",
		"15551234567",
		"+05551234567",
		"+1555",
		"+1555123456789012345",
		"+1 555 123 4567",
	}
	for _, phone := range invalid {
		assert.False(t, IsValidPhone(phone), "expected %q to be invalid", phone)
	}
}

func TestNormalizeContact(t *testing.T) {
	assert.Equal(t, "pat@example.com", NormalizeContact(models.ContactTypeEmail, "  Pat@Example.COM "))
	assert.Equal(t, "+15551234567", NormalizeContact(models.ContactTypeSMS, " +15551234567 "))
	assert.Equal(t, "whatever", NormalizeContact("fax", " whatever "))
}
