package registration

import (
	"strings"
	"time"

	"github.com/healthvault-api/internal/domain"
)

// Accepted date of birth inputs. Ambiguous US-style MM/DD is not accepted.
var dobLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
}

var earliestDOB = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// parseDateOfBirth returns the canonical YYYY-MM-DD form of raw.
func parseDateOfBirth(raw string, now time.Time) (string, string) {
	raw = strings.TrimSpace(raw)
	var (
		t   time.Time
		err error
	)
	for _, layout := range dobLayouts {
		if t, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		ts, rErr := time.Parse(time.RFC3339, raw)
		if rErr != nil {
			return "", "must be a date in YYYY-MM-DD format"
		}
		t = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.After(today) {
		return "", "must not be in the future"
	}
	if t.Before(earliestDOB) {
		return "", "must be after 1900-01-01"
	}
	return t.Format(domain.DateLayout), ""
}

// profileUpdates validates the semantic rules the struct tags cannot express
// and builds the partial update. All problems are reported together on fe.
func profileUpdates(req CompleteProfileRequest, now time.Time, fe *domain.FieldError) map[string]interface{} {
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if req.FirstName != "" && first == "" {
		fe.Add("firstName", "is required")
	}
	if req.LastName != "" && last == "" {
		fe.Add("lastName", "is required")
	}

	var phone string
	if req.Phone != "" {
		phone = domain.DigitsOnly(req.Phone)
		if len(phone) < 7 || len(phone) > 15 {
			fe.Add("phone", "must be a phone number with 7 to 15 digits")
		}
	}

	var dob string
	if req.DateOfBirth != "" {
		var msg string
		if dob, msg = parseDateOfBirth(req.DateOfBirth, now); msg != "" {
			fe.Add("dateOfBirth", msg)
		}
	}

	if req.PrivacyAccepted != nil && !*req.PrivacyAccepted {
		fe.Add("privacyAccepted", "must be accepted")
	}

	return map[string]interface{}{
		domain.FieldFirstName:       first,
		domain.FieldLastName:        last,
		domain.FieldAlternatePhone:  phone,
		domain.FieldDateOfBirth:     dob,
		domain.FieldGender:          req.Gender,
		domain.FieldPrivacyAccepted: true,
		domain.FieldProfileComplete: true,
		domain.FieldUpdatedAt:       now,
	}
}
