package models

import "time"

// ChildAnswer stores the yes/no answer recorded per (instance, user) pair
// when the instance carries a custom enrolment question. Answers survive
// unenrolment on purpose; they are a record of what was agreed at signup.
type ChildAnswer struct {
	InstanceID int64     `db:"instance_id" json:"instance_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Value      bool      `db:"value" json:"value"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
