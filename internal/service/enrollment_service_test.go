package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type mockEnrollmentStore struct {
	registerErr  error
	dropErr      error
	enrollment   *models.Enrollment
	detail       *models.EnrollmentDetail
	dropDeadline time.Time
}

func (m *mockEnrollmentStore) Register(ctx context.Context, studentID, sectionID string, now, dropDeadline time.Time) (*models.Enrollment, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	m.dropDeadline = dropDeadline
	m.enrollment = &models.Enrollment{
		ID: "enr-1", StudentID: studentID, SectionID: sectionID,
		Status: models.EnrollmentEnrolled, EnrolledAt: now, DropDeadline: dropDeadline,
	}
	return m.enrollment, nil
}

func (m *mockEnrollmentStore) Drop(ctx context.Context, enrollmentID string, now time.Time) (*models.Enrollment, error) {
	if m.dropErr != nil {
		return nil, m.dropErr
	}
	dropped := *m.enrollment
	dropped.Status = models.EnrollmentDropped
	dropped.DroppedAt = &now
	return &dropped, nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockEnrollmentStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if m.detail != nil {
		return m.detail, nil
	}
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: *m.enrollment, CourseCode: "CS101", CourseCredits: 4}, nil
}

func (m *mockEnrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *mockEnrollmentStore) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return nil, nil
}

type mockRegistrationGate struct {
	err error
}

func (m *mockRegistrationGate) GateRegisterOrDrop(ctx context.Context, role models.Role) error {
	if role == models.RoleAdmin {
		return nil
	}
	return m.err
}

func newEnrollmentServiceForTest(store *mockEnrollmentStore, gate *mockRegistrationGate) *EnrollmentService {
	return NewEnrollmentService(store, gate, 30*24*time.Hour, NewValidator(), zap.NewNop())
}

func TestRegister(t *testing.T) {
	store := &mockEnrollmentStore{}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	detail, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, "enr-1", detail.ID)
	assert.Equal(t, models.EnrollmentEnrolled, detail.Status)
	// Deadline is registration time plus the configured window.
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), store.dropDeadline, time.Minute)
}

func TestRegisterGateClosed(t *testing.T) {
	store := &mockEnrollmentStore{}
	gate := &mockRegistrationGate{err: appErrors.Clone(appErrors.ErrAddDropClosed, "")}
	svc := newEnrollmentServiceForTest(store, gate)

	_, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAddDropClosed.Code, appErrors.FromError(err).Code)

	// Admins bypass the gate.
	_, err = svc.Register(context.Background(), models.RoleAdmin, RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.NoError(t, err)
}

func TestRegisterSectionFull(t *testing.T) {
	store := &mockEnrollmentStore{registerErr: repository.ErrSectionFull}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSectionFull.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateSection(t *testing.T) {
	store := &mockEnrollmentStore{registerErr: repository.ErrAlreadyEnrolled}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{StudentID: "stu-1", SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateCourse(t *testing.T) {
	store := &mockEnrollmentStore{registerErr: &repository.DuplicateCourseError{CourseCode: "CS101", SectionCode: "A"}}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{StudentID: "stu-1", SectionID: "sec-2"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "CS101")
	assert.Contains(t, appErr.Message, "section A")
}

func TestRegisterMissingFields(t *testing.T) {
	svc := newEnrollmentServiceForTest(&mockEnrollmentStore{}, &mockRegistrationGate{})

	_, err := svc.Register(context.Background(), models.RoleStudent, RegisterRequest{SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDrop(t *testing.T) {
	store := &mockEnrollmentStore{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", SectionID: "sec-1", Status: models.EnrollmentEnrolled,
		DropDeadline: time.Now().Add(time.Hour),
	}}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	dropped, err := svc.Drop(context.Background(), models.RoleStudent, "stu-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDropped, dropped.Status)
	assert.NotNil(t, dropped.DroppedAt)
}

func TestDropForeignEnrollment(t *testing.T) {
	store := &mockEnrollmentStore{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", SectionID: "sec-1", Status: models.EnrollmentEnrolled,
	}}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Drop(context.Background(), models.RoleStudent, "stu-2", "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins may drop any student's enrollment.
	_, err = svc.Drop(context.Background(), models.RoleAdmin, "admin-1", "enr-1")
	require.NoError(t, err)
}

func TestDropDeadlinePassed(t *testing.T) {
	store := &mockEnrollmentStore{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentEnrolled},
		dropErr:    repository.ErrDropDeadlinePassed,
	}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Drop(context.Background(), models.RoleStudent, "stu-1", "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDropDeadlinePassed.Code, appErrors.FromError(err).Code)
}

func TestDropNotActive(t *testing.T) {
	store := &mockEnrollmentStore{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentDropped},
		dropErr:    repository.ErrNotEnrolled,
	}
	svc := newEnrollmentServiceForTest(store, &mockRegistrationGate{})

	_, err := svc.Drop(context.Background(), models.RoleStudent, "stu-1", "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
