package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type sectionStore interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.SectionDetail, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.SectionDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// SectionRequest creates or updates a scheduled offering.
type SectionRequest struct {
	CourseID     string  `json:"course_id" validate:"required"`
	InstructorID *string `json:"instructor_id,omitempty"`
	Code         string  `json:"code" validate:"required,max=16"`
	Schedule     string  `json:"schedule" validate:"required,max=128"`
	Room         string  `json:"room" validate:"required,max=64"`
	Capacity     int     `json:"capacity" validate:"required,min=1"`
	Term         string  `json:"term" validate:"required,max=32"`
	Year         int     `json:"year" validate:"required,min=2000,max=2100"`
}

// SectionService manages section scheduling. Mutations are admin-only and go
// through the maintenance gate.
type SectionService struct {
	store     sectionStore
	courses   courseReader
	gate      mutationGate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(store sectionStore, courses courseReader, gate mutationGate, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{store: store, courses: courses, gate: gate, validator: validate, logger: logger}
}

// Create schedules a new section of an existing course.
func (s *SectionService) Create(ctx context.Context, actor Actor, req SectionRequest) (*models.Section, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	section := &models.Section{
		CourseID:     req.CourseID,
		InstructorID: req.InstructorID,
		Code:         req.Code,
		Schedule:     req.Schedule,
		Room:         req.Room,
		Capacity:     req.Capacity,
		Term:         req.Term,
		Year:         req.Year,
		Status:       models.SectionActive,
	}
	if err := s.store.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}

	s.logger.Info("section created", zap.String("section_id", section.ID), zap.String("course_id", req.CourseID))
	return section, nil
}

// Update rewrites a section's schedule fields. Capacity may not drop below the
// current enrolled count.
func (s *SectionService) Update(ctx context.Context, actor Actor, sectionID string, req SectionRequest) (*models.Section, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	section, err := s.store.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if req.Capacity < section.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrConflict, "capacity cannot be reduced below the current enrolled count")
	}

	section.InstructorID = req.InstructorID
	section.Code = req.Code
	section.Schedule = req.Schedule
	section.Room = req.Room
	section.Capacity = req.Capacity
	section.Term = req.Term
	section.Year = req.Year
	if err := s.store.Update(ctx, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}

	s.logger.Info("section updated", zap.String("section_id", sectionID))
	return section, nil
}

// Delete removes a section that has no enrolled students.
func (s *SectionService) Delete(ctx context.Context, actor Actor, sectionID string) error {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return err
	}

	section, err := s.store.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.EnrolledCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "section has enrolled students and cannot be deleted")
	}

	if err := s.store.Delete(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A registration landed between the check and the delete.
			return appErrors.Clone(appErrors.ErrConflict, "section has enrolled students and cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}

	s.logger.Info("section deleted", zap.String("section_id", sectionID))
	return nil
}

// Find returns a section with course context.
func (s *SectionService) Find(ctx context.Context, sectionID string) (*models.SectionDetail, error) {
	detail, err := s.store.FindDetailByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return detail, nil
}

// List returns all sections with course context.
func (s *SectionService) List(ctx context.Context) ([]models.SectionDetail, error) {
	sections, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// ListByInstructor returns the sections an instructor teaches.
func (s *SectionService) ListByInstructor(ctx context.Context, instructorID string) ([]models.SectionDetail, error) {
	sections, err := s.store.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor sections")
	}
	return sections, nil
}
