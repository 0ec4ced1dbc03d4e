package domain

import (
	"fmt"
	"strings"
)

type ContactMethod string

const (
	MethodEmail    ContactMethod = "email"
	MethodPhone    ContactMethod = "phone"
	MethodWhatsApp ContactMethod = "whatsapp"
)

// Phone numbers are stored as digits only; E.164 caps them at 15.
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Contact is a normalized contact channel value.
type Contact struct {
	Method ContactMethod
	Value  string
}

// IsEmail reports whether the contact is delivered by email.
func (c Contact) IsEmail() bool { return c.Method == MethodEmail }

// Key identifies the contact independently of delivery channel: phone and
// whatsapp share the same number space.
func (c Contact) Key() string {
	if c.Method == MethodEmail {
		return string(MethodEmail) + "#" + c.Value
	}
	return string(MethodPhone) + "#" + c.Value
}

// NormalizeContact validates raw and returns its canonical form. An empty
// method is inferred: values containing "@" are email, everything else phone.
func NormalizeContact(raw string, method ContactMethod) (Contact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Contact{}, NewFieldError(ErrValidation, "contact", "is required")
	}
	if method == "" {
		if strings.Contains(raw, "@") {
			method = MethodEmail
		} else {
			method = MethodPhone
		}
	}
	switch method {
	case MethodEmail:
		v := strings.ToLower(raw)
		at := strings.Index(v, "@")
		if at <= 0 || at == len(v)-1 || strings.Count(v, "@") != 1 || strings.ContainsAny(v, " \t") {
			return Contact{}, NewFieldError(ErrValidation, "contact", "must be a valid email address")
		}
		return Contact{Method: MethodEmail, Value: v}, nil
	case MethodPhone, MethodWhatsApp:
		v := DigitsOnly(raw)
		if len(v) < minPhoneDigits || len(v) > maxPhoneDigits {
			return Contact{}, NewFieldError(ErrValidation, "contact",
				fmt.Sprintf("must be a phone number with %d to %d digits", minPhoneDigits, maxPhoneDigits))
		}
		return Contact{Method: method, Value: v}, nil
	default:
		return Contact{}, NewFieldError(ErrValidation, "method", "must be one of email, phone, whatsapp")
	}
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
