package domain

import "time"

type OtpPurpose string

const (
	PurposeRegistration  OtpPurpose = "registration"
	PurposeLogin         OtpPurpose = "login"
	PurposePasswordReset OtpPurpose = "password_reset"
)

// OtpVerification stores the hash of an issued one-time code.
// Records are only ever created and flipped to used; expired and stale
// records are kept as an audit trail.
type OtpVerification struct {
	OtpID        string     `json:"id" dynamodbav:"otp_id"`
	ContactValue string     `json:"contact_value" dynamodbav:"contact_value"`
	Purpose      OtpPurpose `json:"purpose" dynamodbav:"purpose"`
	// ContactPurpose is the lookup key "<contact>#<purpose>".
	ContactPurpose string    `json:"-" dynamodbav:"contact_purpose"`
	CodeHash       string    `json:"-" dynamodbav:"code_hash"`
	IsUsed         bool      `json:"is_used" dynamodbav:"is_used"`
	ExpiresAt      time.Time `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}

// ActiveAt reports whether the record may still be verified at now.
func (v *OtpVerification) ActiveAt(now time.Time) bool {
	return !v.IsUsed && now.Before(v.ExpiresAt)
}

// ContactPurposeKey builds the lookup key shared by all store backends.
func ContactPurposeKey(contactValue string, purpose OtpPurpose) string {
	return contactValue + "#" + string(purpose)
}
