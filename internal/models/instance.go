package models

import "time"

// InstanceStatus indicates whether an enrolment instance accepts use at all.
type InstanceStatus string

const (
	InstanceStatusEnabled  InstanceStatus = "ENABLED"
	InstanceStatusDisabled InstanceStatus = "DISABLED"
)

// Instance is one self+parents enrolment configuration attached to a course.
//
// Timestamps for the enrolment window are unix seconds; zero means unbounded.
type Instance struct {
	ID       int64          `db:"id" json:"id"`
	CourseID int64          `db:"course_id" json:"course_id"`
	Name     string         `db:"name" json:"name"`
	Status   InstanceStatus `db:"status" json:"status"`

	Password        string `db:"password" json:"-"`
	GroupKeyAllowed bool   `db:"group_key_allowed" json:"group_key_allowed"`

	RoleID         int64 `db:"role_id" json:"role_id"`
	EnrolPeriod    int64 `db:"enrol_period" json:"enrol_period"`
	EnrolStartDate int64 `db:"enrol_start_date" json:"enrol_start_date"`
	EnrolEndDate   int64 `db:"enrol_end_date" json:"enrol_end_date"`

	InactivityThreshold int64 `db:"inactivity_threshold" json:"inactivity_threshold"`
	ExpiryThreshold     int64 `db:"expiry_threshold" json:"expiry_threshold"`
	ExpiryNotify        int   `db:"expiry_notify" json:"expiry_notify"`
	NotifyAll           bool  `db:"notify_all" json:"notify_all"`

	MaxEnrolled      int   `db:"max_enrolled" json:"max_enrolled"`
	NewEnrolsAllowed bool  `db:"new_enrols_allowed" json:"new_enrols_allowed"`
	CohortID         int64 `db:"cohort_id" json:"cohort_id"`

	ParentsCanEnrol     bool  `db:"parents_can_enrol" json:"parents_can_enrol"`
	ParentsCanUnenrol   bool  `db:"parents_can_unenrol" json:"parents_can_unenrol"`
	ParentRoleID        int64 `db:"parent_role_id" json:"parent_role_id"`
	ParentsCountedInMax bool  `db:"parents_counted_in_max" json:"parents_counted_in_max"`

	ChildQuestion  string `db:"child_question" json:"child_question"`
	WelcomeMessage string `db:"welcome_message" json:"welcome_message"`
	SendWelcome    bool   `db:"send_welcome" json:"send_welcome"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RequiresKey reports whether submissions against this instance must carry
// an enrolment key.
func (i *Instance) RequiresKey() bool {
	return i.Password != ""
}

// InfoIcon is the course-listing marker for an enrolment method.
type InfoIcon string

const (
	InfoIconWithKey    InfoIcon = "withkey"
	InfoIconWithoutKey InfoIcon = "withoutkey"
)
