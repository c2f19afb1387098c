package models

import "time"

// SectionStatus enumerates section lifecycle states.
type SectionStatus string

const (
	SectionActive    SectionStatus = "ACTIVE"
	SectionInactive  SectionStatus = "INACTIVE"
	SectionCompleted SectionStatus = "COMPLETED"
)

// Section is one scheduled offering of a course with finite seats.
// enrolled_count is a cached count of ENROLLED enrollments; every mutation of
// it is co-transactional with the enrollment row it reflects.
type Section struct {
	ID            string        `db:"id" json:"id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	InstructorID  *string       `db:"instructor_id" json:"instructor_id,omitempty"`
	Code          string        `db:"code" json:"code"`
	Schedule      string        `db:"schedule" json:"schedule"`
	Room          string        `db:"room" json:"room"`
	Capacity      int           `db:"capacity" json:"capacity"`
	EnrolledCount int           `db:"enrolled_count" json:"enrolled_count"`
	Term          string        `db:"term" json:"term"`
	Year          int           `db:"year" json:"year"`
	Status        SectionStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// IsFull reports whether no seats remain.
func (s *Section) IsFull() bool {
	return s.EnrolledCount >= s.Capacity
}

// SectionDetail joins a section with its course for listings.
type SectionDetail struct {
	Section
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	CourseCredits int    `db:"course_credits" json:"course_credits"`
}

// SeatsRemaining returns the number of open seats, never negative.
func (d *SectionDetail) SeatsRemaining() int {
	remaining := d.Capacity - d.EnrolledCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
