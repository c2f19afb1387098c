package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	List(ctx context.Context) ([]models.Course, error)
}

// CourseRequest creates or updates a catalogue entry.
type CourseRequest struct {
	Code        string  `json:"code" validate:"required,min=2,max=16"`
	Title       string  `json:"title" validate:"required,max=255"`
	Credits     int     `json:"credits" validate:"required,min=1,max=10"`
	Description *string `json:"description,omitempty"`
}

// CourseService manages the course catalogue. Mutations are admin-only and go
// through the maintenance gate.
type CourseService struct {
	store     courseStore
	gate      mutationGate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(store courseStore, gate mutationGate, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{store: store, gate: gate, validator: validate, logger: logger}
}

// Create adds a course to the catalogue. Codes are unique.
func (s *CourseService) Create(ctx context.Context, actor Actor, req CourseRequest) (*models.Course, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	taken, err := s.store.ExistsByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", code))
	}

	course := &models.Course{
		Code:        code,
		Title:       strings.TrimSpace(req.Title),
		Credits:     req.Credits,
		Description: req.Description,
	}
	if err := s.store.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", code))
	return course, nil
}

// Update rewrites a course's title, credits and description. The code is
// immutable once created; enrollments reference it in drop messages.
func (s *CourseService) Update(ctx context.Context, actor Actor, courseID string, req CourseRequest) (*models.Course, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.store.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course.Title = strings.TrimSpace(req.Title)
	course.Credits = req.Credits
	course.Description = req.Description
	if err := s.store.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.logger.Info("course updated", zap.String("course_id", courseID))
	return course, nil
}

// Find returns one course.
func (s *CourseService) Find(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.store.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns the full catalogue.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	courses, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}
