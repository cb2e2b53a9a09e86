package models

import "time"

// EnrolmentStatus tracks whether an enrolment is live or suspended.
type EnrolmentStatus string

const (
	EnrolmentStatusActive    EnrolmentStatus = "ACTIVE"
	EnrolmentStatusSuspended EnrolmentStatus = "SUSPENDED"
)

// Enrolment associates a user with a course through one enrolment instance.
// TimeEnd zero means unbounded.
type Enrolment struct {
	ID         string          `db:"id" json:"id"`
	InstanceID int64           `db:"instance_id" json:"instance_id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	RoleID     int64           `db:"role_id" json:"role_id"`
	TimeStart  int64           `db:"time_start" json:"time_start"`
	TimeEnd    int64           `db:"time_end" json:"time_end"`
	Status     EnrolmentStatus `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// RosterEntry is an enrolment joined with user profile fields for exports.
type RosterEntry struct {
	Enrolment
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// SyncCandidate is one (instance, user) pair the sync job should unenrol.
type SyncCandidate struct {
	InstanceID          int64 `db:"instance_id"`
	CourseID            int64 `db:"course_id"`
	UserID              int64 `db:"user_id"`
	InactivityThreshold int64 `db:"inactivity_threshold"`
}

// ExpiryCandidate is one enrolment that just crossed into its instance's
// expiry notification window.
type ExpiryCandidate struct {
	InstanceID int64 `db:"instance_id"`
	CourseID   int64 `db:"course_id"`
	UserID     int64 `db:"user_id"`
	TimeEnd    int64 `db:"time_end"`
	NotifyAll  bool  `db:"notify_all"`
}
