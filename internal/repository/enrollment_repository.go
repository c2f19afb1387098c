package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Register and Drop
// run their capacity/duplicate checks and the enrolled_count mutation inside
// one serializable transaction; the cached count and the true row count cannot
// diverge under concurrent calls.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, section_id, status, enrolled_at, drop_deadline, dropped_at`

// Register creates an ENROLLED enrollment and bumps the section counter as one
// atomic unit. The section row is locked first, so concurrent registrations
// for the same section serialize on the capacity check. Duplicate-section and
// duplicate-course invariants are re-checked inside the transaction.
func (r *EnrollmentRepository) Register(ctx context.Context, studentID, sectionID string, now time.Time, dropDeadline time.Time) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var section struct {
		ID            string `db:"id"`
		CourseID      string `db:"course_id"`
		CourseCode    string `db:"course_code"`
		Capacity      int    `db:"capacity"`
		EnrolledCount int    `db:"enrolled_count"`
	}
	const lockSection = `SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count
        FROM sections s
        JOIN courses c ON c.id = s.course_id
        WHERE s.id = $1
        FOR UPDATE OF s`
	if err := tx.GetContext(ctx, &section, lockSection, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("lock section: %w", err)
	}

	const dupSection = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status = $3 LIMIT 1`
	var one int
	err = tx.GetContext(ctx, &one, dupSection, studentID, sectionID, models.EnrollmentEnrolled)
	if err == nil {
		return nil, ErrAlreadyEnrolled
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check duplicate section: %w", err)
	}

	const dupCourse = `SELECT s.code FROM enrollments e
        JOIN sections s ON s.id = e.section_id
        WHERE e.student_id = $1 AND s.course_id = $2 AND e.status = $3
        LIMIT 1`
	var existingSection string
	err = tx.GetContext(ctx, &existingSection, dupCourse, studentID, section.CourseID, models.EnrollmentEnrolled)
	if err == nil {
		return nil, &DuplicateCourseError{CourseCode: section.CourseCode, SectionCode: existingSection}
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check duplicate course: %w", err)
	}

	if section.EnrolledCount >= section.Capacity {
		return nil, ErrSectionFull
	}

	enrollment := &models.Enrollment{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		SectionID:    sectionID,
		Status:       models.EnrollmentEnrolled,
		EnrolledAt:   now,
		DropDeadline: dropDeadline,
	}
	const insert = `INSERT INTO enrollments (id, student_id, section_id, status, enrolled_at, drop_deadline)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insert, enrollment.ID, enrollment.StudentID, enrollment.SectionID,
		enrollment.Status, enrollment.EnrolledAt, enrollment.DropDeadline); err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	const bump = `UPDATE sections SET enrolled_count = enrolled_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, sectionID, now); err != nil {
		return nil, fmt.Errorf("increment enrolled count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register: %w", err)
	}
	return enrollment, nil
}

// Drop soft-deletes an enrollment and decrements the section counter in the
// same transaction. The row is retained for audit and grade history.
func (r *EnrollmentRepository) Drop(ctx context.Context, enrollmentID string, now time.Time) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin drop: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var enrollment models.Enrollment
	lockEnrollment := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	if err := tx.GetContext(ctx, &enrollment, lockEnrollment, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}

	if enrollment.Status != models.EnrollmentEnrolled {
		return nil, ErrNotEnrolled
	}
	if !now.Before(enrollment.DropDeadline) {
		return nil, ErrDropDeadlinePassed
	}

	const update = `UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, enrollmentID, models.EnrollmentDropped, now); err != nil {
		return nil, fmt.Errorf("drop enrollment: %w", err)
	}

	const decrement = `UPDATE sections SET enrolled_count = enrolled_count - 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, decrement, enrollment.SectionID, now); err != nil {
		return nil, fmt.Errorf("decrement enrolled count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drop: %w", err)
	}

	enrollment.Status = models.EnrollmentDropped
	enrollment.DroppedAt = &now
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

const enrollmentDetailQuery = `SELECT e.id, e.student_id, e.section_id, e.status, e.enrolled_at, e.drop_deadline, e.dropped_at,
        s.code AS section_code, s.term, s.year, c.id AS course_id, c.code AS course_code,
        c.title AS course_title, c.credits AS course_credits
        FROM enrollments e
        JOIN sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id`

// FindDetailByID returns an enrollment with section and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns all of a student's enrollments, dropped ones included.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailQuery + ` WHERE e.student_id = $1 ORDER BY e.enrolled_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListBySection returns the active roster for a section.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE section_id = $1 AND status = $2 ORDER BY enrolled_at`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID, models.EnrollmentEnrolled); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// CountEnrolled returns the true row count backing a section's cached counter.
func (r *EnrollmentRepository) CountEnrolled(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID, models.EnrollmentEnrolled); err != nil {
		return 0, fmt.Errorf("count enrolled: %w", err)
	}
	return count, nil
}
