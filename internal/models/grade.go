package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GradeComponent is one weighted assessment item of an enrollment.
// Component names are unique per enrollment, case-insensitively, and the sum
// of weightage_pct over an enrollment never exceeds 100.
type GradeComponent struct {
	ID            string          `db:"id" json:"id"`
	EnrollmentID  string          `db:"enrollment_id" json:"enrollment_id"`
	ComponentName string          `db:"component_name" json:"component_name"`
	Score         decimal.Decimal `db:"score" json:"score"`
	MaxScore      decimal.Decimal `db:"max_score" json:"max_score"`
	WeightagePct  decimal.Decimal `db:"weightage_pct" json:"weightage_pct"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// GradeSummary is the derived view of one enrollment's gradebook.
type GradeSummary struct {
	EnrollmentID    string           `json:"enrollment_id"`
	Components      []GradeComponent `json:"components"`
	TotalWeightage  decimal.Decimal  `json:"total_weightage"`
	FinalPercentage *decimal.Decimal `json:"final_percentage,omitempty"`
	LetterGrade     *string          `json:"letter_grade,omitempty"`
}

// CGPAResult is the credit-weighted grade-point average for a student.
type CGPAResult struct {
	StudentID     string          `json:"student_id"`
	CGPA          decimal.Decimal `json:"cgpa"`
	GradedCourses int             `json:"graded_courses"`
	TotalCredits  int             `json:"total_credits"`
}

// SectionStatistics summarises graded performance across a section roster.
type SectionStatistics struct {
	SectionID          string           `json:"section_id"`
	TotalStudents      int              `json:"total_students"`
	StudentsWithGrades int              `json:"students_with_grades"`
	ClassAverage       *decimal.Decimal `json:"class_average,omitempty"`
}
