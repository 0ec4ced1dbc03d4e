package domain

import "time"

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderOther          Gender = "other"
	GenderPreferNotToSay Gender = "prefer_not_to_say"
)

// DateLayout is the canonical storage format for dates of birth.
const DateLayout = "2006-01-02"

// User is created as a skeleton when a contact is verified and enriched by
// the password and profile steps.
type User struct {
	UserID          string        `json:"id" dynamodbav:"user_id"`
	Email           *string       `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone           *string       `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	AccountStatus   AccountStatus `json:"account_status" dynamodbav:"account_status"`
	IsEmailVerified bool          `json:"is_email_verified" dynamodbav:"is_email_verified"`
	IsPhoneVerified bool          `json:"is_phone_verified" dynamodbav:"is_phone_verified"`
	PasswordHash    *string       `json:"-" dynamodbav:"password_hash,omitempty"`
	FirstName       *string       `json:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName        *string       `json:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	AlternatePhone  *string       `json:"alternate_phone,omitempty" dynamodbav:"alternate_phone,omitempty"`
	DateOfBirth     *string       `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"` // YYYY-MM-DD
	Gender          *Gender       `json:"gender,omitempty" dynamodbav:"gender,omitempty"`
	PrivacyAccepted bool          `json:"privacy_accepted" dynamodbav:"privacy_accepted"`
	ProfileComplete bool          `json:"profile_complete" dynamodbav:"profile_complete"`
	CreatedAt       time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time     `json:"updated" dynamodbav:"updated_at"`
}

// NewUserForContact builds the skeleton record for a freshly verified contact.
func NewUserForContact(id string, c Contact, now time.Time) *User {
	u := &User{
		UserID:        id,
		AccountStatus: AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	v := c.Value
	if c.IsEmail() {
		u.Email = &v
		u.IsEmailVerified = true
	} else {
		u.Phone = &v
		u.IsPhoneVerified = true
	}
	return u
}

// Contact returns the channel the account was registered with.
func (u *User) Contact() Contact {
	if u.Email != nil {
		return Contact{Method: MethodEmail, Value: *u.Email}
	}
	if u.Phone != nil {
		return Contact{Method: MethodPhone, Value: *u.Phone}
	}
	return Contact{}
}

func (u *User) HasPassword() bool { return u.PasswordHash != nil && *u.PasswordHash != "" }

// RegistrationStep is derived from the stored user, never from client input.
type RegistrationStep string

const (
	StepPasswordRequired RegistrationStep = "PASSWORD_REQUIRED"
	StepProfileRequired  RegistrationStep = "PROFILE_REQUIRED"
	StepActive           RegistrationStep = "ACTIVE"
)

func (u *User) Step() RegistrationStep {
	switch {
	case !u.HasPassword():
		return StepPasswordRequired
	case !u.ProfileComplete:
		return StepProfileRequired
	default:
		return StepActive
	}
}

// Field names used in partial user updates across store backends.
const (
	FieldIsEmailVerified = "is_email_verified"
	FieldIsPhoneVerified = "is_phone_verified"
	FieldPasswordHash    = "password_hash"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldAlternatePhone  = "alternate_phone"
	FieldDateOfBirth     = "date_of_birth"
	FieldGender          = "gender"
	FieldPrivacyAccepted = "privacy_accepted"
	FieldProfileComplete = "profile_complete"
	FieldUpdatedAt       = "updated_at"
)
