package repository

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the transactional state machines. The service
// layer maps these onto the API error taxonomy.
var (
	ErrSectionNotFound    = errors.New("section not found")
	ErrAlreadyEnrolled    = errors.New("already enrolled in section")
	ErrSectionFull        = errors.New("section full")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrNotEnrolled        = errors.New("enrollment not active")
	ErrDropDeadlinePassed = errors.New("drop deadline passed")
	ErrDuplicateComponent = errors.New("grade component already exists")
	ErrComponentNotFound  = errors.New("grade component not found")
)

// DuplicateCourseError reports a second registration for the same course; the
// existing section is carried so callers can name it.
type DuplicateCourseError struct {
	CourseCode  string
	SectionCode string
}

func (e *DuplicateCourseError) Error() string {
	return fmt.Sprintf("already enrolled in %s section %s", e.CourseCode, e.SectionCode)
}

// WeightageExceededError reports a weightage-budget violation with the figures
// needed for the caller-facing message.
type WeightageExceededError struct {
	Current   decimal.Decimal
	Attempted decimal.Decimal
	Total     decimal.Decimal
}

func (e *WeightageExceededError) Error() string {
	return fmt.Sprintf("total weightage would be %s%% (max 100%%): current %s%%, adding %s%%",
		e.Total.StringFixed(2), e.Current.StringFixed(2), e.Attempted.StringFixed(2))
}
