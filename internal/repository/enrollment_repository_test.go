package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

func TestRegisterCommitsEnrollmentAndCounter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	deadline := now.Add(30 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "course_code", "capacity", "enrolled_count"}).
			AddRow("sec-1", "crs-1", "CS101", 30, 12))
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("stu-1", "sec-1", string(models.EnrollmentEnrolled)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.code FROM enrollments e").
		WithArgs("stu-1", "crs-1", string(models.EnrollmentEnrolled)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sections SET enrolled_count = enrolled_count \\+ 1").
		WithArgs("sec-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Register(context.Background(), "stu-1", "sec-1", now, deadline)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentEnrolled, enrollment.Status)
	assert.Equal(t, deadline, enrollment.DropDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSectionFullRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "course_code", "capacity", "enrolled_count"}).
			AddRow("sec-1", "crs-1", "CS101", 30, 30))
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.code FROM enrollments e").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), "stu-1", "sec-1", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrSectionFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateSectionRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count").
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "course_code", "capacity", "enrolled_count"}).
			AddRow("sec-1", "crs-1", "CS101", 30, 1))
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), "stu-1", "sec-1", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateCourseNamesExistingSection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count").
		WithArgs("sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "course_code", "capacity", "enrolled_count"}).
			AddRow("sec-2", "crs-1", "CS101", 30, 1))
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT s.code FROM enrollments e").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("A"))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), "stu-1", "sec-2", now, now.Add(time.Hour))
	require.Error(t, err)
	var dup *DuplicateCourseError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "CS101", dup.CourseCode)
	assert.Equal(t, "A", dup.SectionCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUnknownSection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id, s.course_id, c.code AS course_code, s.capacity, s.enrolled_count").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), "stu-1", "missing", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrSectionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropCommitsStatusAndCounter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	deadline := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, section_id, status, enrolled_at, drop_deadline, dropped_at FROM enrollments").
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "section_id", "status", "enrolled_at", "drop_deadline", "dropped_at"}).
			AddRow("enr-1", "stu-1", "sec-1", string(models.EnrollmentEnrolled), now.Add(-time.Hour), deadline, nil))
	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs("enr-1", string(models.EnrollmentDropped), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sections SET enrolled_count = enrolled_count - 1").
		WithArgs("sec-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	dropped, err := repo.Drop(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDropped, dropped.Status)
	require.NotNil(t, dropped.DroppedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropAfterDeadlineRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, section_id, status, enrolled_at, drop_deadline, dropped_at FROM enrollments").
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "section_id", "status", "enrolled_at", "drop_deadline", "dropped_at"}).
			AddRow("enr-1", "stu-1", "sec-1", string(models.EnrollmentEnrolled), now.Add(-48*time.Hour), now.Add(-time.Minute), nil))
	mock.ExpectRollback()

	_, err := repo.Drop(context.Background(), "enr-1", now)
	assert.ErrorIs(t, err, ErrDropDeadlinePassed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropNotEnrolledRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, section_id, status, enrolled_at, drop_deadline, dropped_at FROM enrollments").
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "section_id", "status", "enrolled_at", "drop_deadline", "dropped_at"}).
			AddRow("enr-1", "stu-1", "sec-1", string(models.EnrollmentDropped), now.Add(-48*time.Hour), now.Add(time.Hour), now.Add(-time.Hour)))
	mock.ExpectRollback()

	_, err := repo.Drop(context.Background(), "enr-1", now)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
