package domain

import "time"

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptCompleted AttemptStatus = "completed"
	AttemptExpired   AttemptStatus = "expired"
)

// RegistrationAttempt is an audit record of a contact submission. It is never deleted.
type RegistrationAttempt struct {
	AttemptID     string        `json:"id" dynamodbav:"attempt_id"`
	ContactValue  string        `json:"contact_value" dynamodbav:"contact_value"`
	ContactMethod ContactMethod `json:"contact_method" dynamodbav:"contact_method"`
	Status        AttemptStatus `json:"status" dynamodbav:"status"`
	CreatedAt     time.Time     `json:"created" dynamodbav:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}
