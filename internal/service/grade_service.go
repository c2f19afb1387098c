package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type gradeStore interface {
	CreateComponent(ctx context.Context, component *models.GradeComponent) error
	UpdateComponent(ctx context.Context, component *models.GradeComponent) error
	DeleteComponent(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.GradeComponent, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeComponent, error)
	TotalWeightage(ctx context.Context, enrollmentID string) (decimal.Decimal, error)
}

type enrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type mutationGate interface {
	GateMutation(ctx context.Context, role models.Role) error
}

// EnterComponentRequest describes a grade entry payload.
type EnterComponentRequest struct {
	ComponentName string          `json:"component_name" validate:"required"`
	Score         decimal.Decimal `json:"score"`
	MaxScore      decimal.Decimal `json:"max_score"`
	WeightagePct  decimal.Decimal `json:"weightage_pct"`
}

// UpdateComponentRequest describes a grade update payload.
type UpdateComponentRequest struct {
	Score        decimal.Decimal `json:"score"`
	MaxScore     decimal.Decimal `json:"max_score"`
	WeightagePct decimal.Decimal `json:"weightage_pct"`
}

// Actor is the authenticated caller handed into every mutating operation; no
// ambient session state is consulted.
type Actor struct {
	ID   string
	Role models.Role
}

// GradeService owns grade entry and the derived metrics: final percentage,
// letter grade and CGPA.
type GradeService struct {
	grades         gradeStore
	enrollments    enrollmentReader
	sections       sectionReader
	gate           mutationGate
	validator      *validator.Validate
	logger         *zap.Logger
	defaultCredits int
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeStore, enrollments enrollmentReader, sections sectionReader, gate mutationGate, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:         grades,
		enrollments:    enrollments,
		sections:       sections,
		gate:           gate,
		validator:      validate,
		logger:         logger,
		defaultCredits: 3,
	}
}

// EnterComponent records one weighted assessment item for an enrollment.
func (s *GradeService) EnterComponent(ctx context.Context, actor Actor, enrollmentID string, req EnterComponentRequest) (*models.GradeComponent, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := validateScores(req.Score, req.MaxScore, req.WeightagePct); err != nil {
		return nil, err
	}
	if err := s.authorizeGradebook(ctx, actor, enrollmentID); err != nil {
		return nil, err
	}

	component := &models.GradeComponent{
		EnrollmentID:  enrollmentID,
		ComponentName: strings.TrimSpace(req.ComponentName),
		Score:         req.Score,
		MaxScore:      req.MaxScore,
		WeightagePct:  req.WeightagePct,
	}
	if err := s.grades.CreateComponent(ctx, component); err != nil {
		return nil, s.mapGradeError(err, component.ComponentName)
	}

	s.logger.Info("grade component entered",
		zap.String("enrollment_id", enrollmentID),
		zap.String("component", component.ComponentName))
	return component, nil
}

// UpdateComponent rewrites an existing component, re-checking the weightage
// budget against the enrollment's other components.
func (s *GradeService) UpdateComponent(ctx context.Context, actor Actor, componentID string, req UpdateComponentRequest) (*models.GradeComponent, error) {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return nil, err
	}
	if err := validateScores(req.Score, req.MaxScore, req.WeightagePct); err != nil {
		return nil, err
	}

	existing, err := s.grades.FindByID(ctx, componentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade component")
	}
	if err := s.authorizeGradebook(ctx, actor, existing.EnrollmentID); err != nil {
		return nil, err
	}

	component := &models.GradeComponent{
		ID:            componentID,
		EnrollmentID:  existing.EnrollmentID,
		ComponentName: existing.ComponentName,
		Score:         req.Score,
		MaxScore:      req.MaxScore,
		WeightagePct:  req.WeightagePct,
	}
	if err := s.grades.UpdateComponent(ctx, component); err != nil {
		return nil, s.mapGradeError(err, existing.ComponentName)
	}

	s.logger.Info("grade component updated", zap.String("component_id", componentID))
	return component, nil
}

// DeleteComponent removes a component from the gradebook.
func (s *GradeService) DeleteComponent(ctx context.Context, actor Actor, componentID string) error {
	if err := s.gate.GateMutation(ctx, actor.Role); err != nil {
		return err
	}
	existing, err := s.grades.FindByID(ctx, componentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade component")
	}
	if err := s.authorizeGradebook(ctx, actor, existing.EnrollmentID); err != nil {
		return err
	}
	if err := s.grades.DeleteComponent(ctx, componentID); err != nil {
		if errors.Is(err, repository.ErrComponentNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade component")
	}
	return nil
}

// Summary assembles the gradebook view of one enrollment: components, total
// weightage and the derived final percentage/letter grade when defined.
func (s *GradeService) Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error) {
	components, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}

	summary := &models.GradeSummary{
		EnrollmentID:   enrollmentID,
		Components:     components,
		TotalWeightage: decimal.Zero,
	}
	for _, component := range components {
		summary.TotalWeightage = summary.TotalWeightage.Add(component.WeightagePct)
	}
	if pct := FinalPercentage(components); pct != nil {
		letter := LetterGrade(*pct)
		summary.FinalPercentage = pct
		summary.LetterGrade = &letter
	}
	return summary, nil
}

// ListComponents returns the raw components of an enrollment.
func (s *GradeService) ListComponents(ctx context.Context, enrollmentID string) ([]models.GradeComponent, error) {
	components, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}
	return components, nil
}

// CGPA computes the credit-weighted grade-point average over all of a
// student's enrollments that have a defined final percentage. Returns nil
// when no enrollment qualifies.
func (s *GradeService) CGPA(ctx context.Context, studentID string) (*models.CGPAResult, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	totalPoints := decimal.Zero
	totalCredits := 0
	graded := 0

	for _, enrollment := range enrollments {
		components, err := s.grades.ListByEnrollment(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
		}
		pct := FinalPercentage(components)
		if pct == nil {
			continue
		}

		credits := enrollment.CourseCredits
		if credits <= 0 {
			// Course row missing or malformed; fall back rather than dropping
			// the enrollment from the average.
			s.logger.Warn("missing course credits, using default",
				zap.String("enrollment_id", enrollment.ID), zap.Int("default", s.defaultCredits))
			credits = s.defaultCredits
		}

		points := GradePoints(LetterGrade(*pct))
		totalPoints = totalPoints.Add(points.Mul(decimal.NewFromInt(int64(credits))))
		totalCredits += credits
		graded++
	}

	if graded == 0 || totalCredits == 0 {
		return nil, nil
	}

	cgpa := totalPoints.DivRound(decimal.NewFromInt(int64(totalCredits)), 2)
	return &models.CGPAResult{
		StudentID:     studentID,
		CGPA:          cgpa,
		GradedCourses: graded,
		TotalCredits:  totalCredits,
	}, nil
}

// SectionStatistics averages the graded students of one section roster.
func (s *GradeService) SectionStatistics(ctx context.Context, sectionID string) (*models.SectionStatistics, error) {
	roster, err := s.enrollments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list section roster")
	}

	stats := &models.SectionStatistics{SectionID: sectionID, TotalStudents: len(roster)}
	total := decimal.Zero
	for _, enrollment := range roster {
		components, err := s.grades.ListByEnrollment(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
		}
		if pct := FinalPercentage(components); pct != nil {
			total = total.Add(*pct)
			stats.StudentsWithGrades++
		}
	}
	if stats.StudentsWithGrades > 0 {
		average := total.DivRound(decimal.NewFromInt(int64(stats.StudentsWithGrades)), 2)
		stats.ClassAverage = &average
	}
	return stats, nil
}

// authorizeGradebook restricts gradebook writes to the section's instructor;
// admins bypass. The actor comes from verified claims, never ambient state.
func (s *GradeService) authorizeGradebook(ctx context.Context, actor Actor, enrollmentID string) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrForbidden, "only instructors may manage grades")
	}

	enrollment, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	section, err := s.sections.FindByID(ctx, enrollment.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.InstructorID == nil || *section.InstructorID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "section is not taught by this instructor")
	}
	return nil
}

func (s *GradeService) mapGradeError(err error, componentName string) error {
	var exceeded *repository.WeightageExceededError
	switch {
	case errors.Is(err, repository.ErrEnrollmentNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	case errors.Is(err, repository.ErrComponentNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
	case errors.Is(err, repository.ErrDuplicateComponent):
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("a grade for component %q already exists for this enrollment", componentName))
	case errors.As(err, &exceeded):
		return appErrors.Clone(appErrors.ErrWeightageExceeded, fmt.Sprintf(
			"total weightage would be %s%% (max 100%%): current total %s%%, trying to add %s%%",
			exceeded.Total.StringFixed(2), exceeded.Current.StringFixed(2), exceeded.Attempted.StringFixed(2)))
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade component")
	}
}

func validateScores(score, maxScore, weightage decimal.Decimal) error {
	if maxScore.LessThanOrEqual(decimal.Zero) {
		return appErrors.Clone(appErrors.ErrValidation, "max score must be greater than 0")
	}
	if score.IsNegative() || score.GreaterThan(maxScore) {
		return appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and max score")
	}
	if weightage.IsNegative() || weightage.GreaterThan(hundredPct) {
		return appErrors.Clone(appErrors.ErrValidation, "weightage must be between 0 and 100")
	}
	return nil
}
