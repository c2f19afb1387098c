package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type enrollmentStore interface {
	Register(ctx context.Context, studentID, sectionID string, now, dropDeadline time.Time) (*models.Enrollment, error)
	Drop(ctx context.Context, enrollmentID string, now time.Time) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error)
}

type registrationGate interface {
	GateRegisterOrDrop(ctx context.Context, role models.Role) error
}

// RegisterRequest describes a registration payload. StudentID is filled from
// the caller's claims for students; admins may register on behalf of anyone.
type RegisterRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// EnrollmentService is the registration/drop state machine. The capacity and
// duplicate invariants are enforced transactionally by the store; this layer
// gates, validates and maps outcomes.
type EnrollmentService struct {
	store      enrollmentStore
	gate       registrationGate
	dropWindow time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store enrollmentStore, gate registrationGate, dropWindow time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dropWindow <= 0 {
		dropWindow = 30 * 24 * time.Hour
	}
	return &EnrollmentService{store: store, gate: gate, dropWindow: dropWindow, validator: validate, logger: logger, now: time.Now}
}

// Register enrolls a student into a section. Exactly one of two concurrent
// registrations for the last seat succeeds; the other observes SECTION_FULL.
func (s *EnrollmentService) Register(ctx context.Context, actor models.Role, req RegisterRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := s.gate.GateRegisterOrDrop(ctx, actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	enrollment, err := s.store.Register(ctx, req.StudentID, req.SectionID, now, now.Add(s.dropWindow))
	if err != nil {
		var dup *repository.DuplicateCourseError
		switch {
		case errors.Is(err, repository.ErrSectionNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		case errors.Is(err, repository.ErrAlreadyEnrolled):
			return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this section, duplicate registration is not allowed")
		case errors.As(err, &dup):
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
				"already enrolled in %s section %s: drop the existing section first to change sections",
				dup.CourseCode, dup.SectionCode))
		case errors.Is(err, repository.ErrSectionFull):
			return nil, appErrors.Clone(appErrors.ErrSectionFull, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register for section")
		}
	}

	s.logger.Info("student registered",
		zap.String("student_id", req.StudentID),
		zap.String("section_id", req.SectionID),
		zap.String("enrollment_id", enrollment.ID))

	detail, err := s.store.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Drop soft-deletes an enrollment before its deadline. Students may only drop
// their own; admins may drop any.
func (s *EnrollmentService) Drop(ctx context.Context, actor models.Role, actorID, enrollmentID string) (*models.Enrollment, error) {
	if err := s.gate.GateRegisterOrDrop(ctx, actor); err != nil {
		return nil, err
	}

	if actor != models.RoleAdmin {
		owned, err := s.store.FindByID(ctx, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if owned.StudentID != actorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot drop another student's enrollment")
		}
	}

	enrollment, err := s.store.Drop(ctx, enrollmentID, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrNotEnrolled):
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
		case errors.Is(err, repository.ErrDropDeadlinePassed):
			return nil, appErrors.Clone(appErrors.ErrDropDeadlinePassed, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop section")
		}
	}

	s.logger.Info("enrollment dropped", zap.String("enrollment_id", enrollmentID))
	return enrollment, nil
}

// ListByStudent returns a student's enrollment history, dropped rows included.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListBySection returns the active roster for a section.
func (s *EnrollmentService) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	enrollments, err := s.store.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list section roster")
	}
	return enrollments, nil
}

// FindDetail returns one enrollment with course context.
func (s *EnrollmentService) FindDetail(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	detail, err := s.store.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}
