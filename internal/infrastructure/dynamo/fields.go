package dynamo

// Attribute and index names shared by the repos and Bootstrap.
const (
	attrUserID          = "user_id"
	attrOwnerID         = "owner_id"
	attrProfileComplete = "profile_complete"
	attrAttemptID       = "attempt_id"
	attrStatus          = "status"
	attrCompletedAt     = "completed_at"
	attrContactValue    = "contact_value"
	attrOtpID           = "otp_id"
	attrContactPurpose  = "contact_purpose"
	attrIsUsed          = "is_used"

	indexContactPurpose = "contact_purpose-otp_id-index"

	// Contact guard items live in the users table under this key prefix.
	guardPrefix = "contact#"
)
