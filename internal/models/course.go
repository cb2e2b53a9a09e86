package models

// Course is the host course record, read-only from this service.
type Course struct {
	ID        int64  `db:"id" json:"id"`
	FullName  string `db:"full_name" json:"full_name"`
	ShortName string `db:"short_name" json:"short_name"`
}

// Group is a host course group; a non-empty enrolment key makes it a
// candidate for group-key matching during enrolment.
type Group struct {
	ID           int64  `db:"id" json:"id"`
	CourseID     int64  `db:"course_id" json:"course_id"`
	Name         string `db:"name" json:"name"`
	EnrolmentKey string `db:"enrolment_key" json:"-"`
}

// Cohort is a host-managed named set of users used to restrict eligibility.
type Cohort struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
