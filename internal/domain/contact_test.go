package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeContact_EmailLowercased(t *testing.T) {
	c, err := NormalizeContact("  User@Example.COM ", "")
	require.NoError(t, err)
	assert.Equal(t, MethodEmail, c.Method)
	assert.Equal(t, "user@example.com", c.Value)
}

func TestNormalizeContact_PhoneDigitsOnly(t *testing.T) {
	c, err := NormalizeContact("+1 (555) 123-4567", "")
	require.NoError(t, err)
	assert.Equal(t, MethodPhone, c.Method)
	assert.Equal(t, "15551234567", c.Value)
}

func TestNormalizeContact_WhatsAppKeepsMethod(t *testing.T) {
	c, err := NormalizeContact("+44 7700 900123", MethodWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, MethodWhatsApp, c.Method)
	assert.Equal(t, "447700900123", c.Value)
	assert.Equal(t, "phone#447700900123", c.Key())
}

func TestNormalizeContact_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		method ContactMethod
		field  string
	}{
		{"empty", "   ", "", "contact"},
		{"email without at", "user.example.com", MethodEmail, "contact"},
		{"email missing domain", "user@", "", "contact"},
		{"double at", "a@b@c", "", "contact"},
		{"short phone", "12-34", "", "contact"},
		{"long phone", "1234567890123456", "", "contact"},
		{"unknown method", "user@example.com", "pigeon", "method"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeContact(tc.raw, tc.method)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe.Fields, tc.field)
		})
	}
}
