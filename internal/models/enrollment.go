package models

import "time"

// EnrollmentStatus enumerates enrollment lifecycle states. Rows are never
// deleted; a drop is the ENROLLED -> DROPPED transition.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

// Enrollment is a student's claim on a seat in one section.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SectionID    string           `db:"section_id" json:"section_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DropDeadline time.Time        `db:"drop_deadline" json:"drop_deadline"`
	DroppedAt    *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// CanDrop reports whether the enrollment is still droppable at the given time.
func (e *Enrollment) CanDrop(now time.Time) bool {
	return e.Status == EnrollmentEnrolled && now.Before(e.DropDeadline)
}

// EnrollmentDetail joins an enrollment with section and course context.
type EnrollmentDetail struct {
	Enrollment
	SectionCode   string `db:"section_code" json:"section_code"`
	CourseID      string `db:"course_id" json:"course_id"`
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	CourseCredits int    `db:"course_credits" json:"course_credits"`
	Term          string `db:"term" json:"term"`
	Year          int    `db:"year" json:"year"`
}
