package registration

import (
	"time"

	"github.com/healthvault-api/internal/domain"
)

type SubmitContactRequest struct {
	Contact string `json:"contact" validate:"required,max=254"`
	Method  string `json:"method" validate:"omitempty,oneof=email phone whatsapp"`
}

type ResendOtpRequest struct {
	Contact        string `json:"contact" validate:"required,max=254"`
	Method         string `json:"method" validate:"omitempty,oneof=email phone whatsapp"`
	RegistrationID string `json:"registrationId"`
}

// OtpSent is returned by SubmitContact and ResendOtp.
type OtpSent struct {
	RegistrationID string               `json:"registrationId"`
	ContactType    domain.ContactMethod `json:"contactType"`
	ExpiresAt      time.Time            `json:"expiresAt"`
}

type VerifyOtpRequest struct {
	Contact        string `json:"contact" validate:"required,max=254"`
	Method         string `json:"method" validate:"omitempty,oneof=email phone whatsapp"`
	Otp            string `json:"otp" validate:"required,numeric,max=12"`
	RegistrationID string `json:"registrationId"`
}

type VerifyOtpResponse struct {
	Token                     string               `json:"token"`
	UserID                    string               `json:"userId"`
	ContactType               domain.ContactMethod `json:"contactType"`
	RequiresProfileCompletion bool                 `json:"requiresProfileCompletion"`
	ExpiresAt                 time.Time            `json:"expiresAt"`
}

type SetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type CompleteProfileRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"required,max=32"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required"`
	Gender          string `json:"gender" validate:"required,oneof=male female other prefer_not_to_say"`
	PrivacyAccepted *bool  `json:"privacyAccepted" validate:"required"`
}

type StatusResponse struct {
	UserID string                  `json:"userId"`
	Step   domain.RegistrationStep `json:"step"`
}
