package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type mockGradeStore struct {
	components map[string]*models.GradeComponent
	byEnroll   map[string][]models.GradeComponent
	createErr  error
	updateErr  error
}

func (m *mockGradeStore) CreateComponent(ctx context.Context, component *models.GradeComponent) error {
	if m.createErr != nil {
		return m.createErr
	}
	component.ID = "gc-1"
	return nil
}

func (m *mockGradeStore) UpdateComponent(ctx context.Context, component *models.GradeComponent) error {
	return m.updateErr
}

func (m *mockGradeStore) DeleteComponent(ctx context.Context, id string) error {
	if _, ok := m.components[id]; !ok {
		return repository.ErrComponentNotFound
	}
	delete(m.components, id)
	return nil
}

func (m *mockGradeStore) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	component, ok := m.components[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return component, nil
}

func (m *mockGradeStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeComponent, error) {
	return m.byEnroll[enrollmentID], nil
}

func (m *mockGradeStore) TotalWeightage(ctx context.Context, enrollmentID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range m.byEnroll[enrollmentID] {
		total = total.Add(c.WeightagePct)
	}
	return total, nil
}

type mockEnrollmentReader struct {
	details   map[string]*models.EnrollmentDetail
	byStudent map[string][]models.EnrollmentDetail
	bySection map[string][]models.Enrollment
}

func (m *mockEnrollmentReader) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, ok := m.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (m *mockEnrollmentReader) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return m.byStudent[studentID], nil
}

func (m *mockEnrollmentReader) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return m.bySection[sectionID], nil
}

type mockSectionReader struct {
	sections map[string]*models.Section
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	section, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return section, nil
}

type mockGate struct {
	blocked bool
}

func (m *mockGate) GateMutation(ctx context.Context, role models.Role) error {
	if m.blocked && role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrMaintenanceMode, "")
	}
	return nil
}

func instructorFixture() (*mockGradeStore, *mockEnrollmentReader, *mockSectionReader, *mockGate) {
	instructorID := "inst-1"
	store := &mockGradeStore{
		components: map[string]*models.GradeComponent{},
		byEnroll:   map[string][]models.GradeComponent{},
	}
	enrollments := &mockEnrollmentReader{
		details: map[string]*models.EnrollmentDetail{
			"enr-1": {
				Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", SectionID: "sec-1", Status: models.EnrollmentEnrolled},
				CourseCode: "CS101", CourseCredits: 4,
			},
		},
	}
	sections := &mockSectionReader{
		sections: map[string]*models.Section{
			"sec-1": {ID: "sec-1", CourseID: "crs-1", InstructorID: &instructorID, Capacity: 30},
		},
	}
	return store, enrollments, sections, &mockGate{}
}

func newGradeServiceForTest(store *mockGradeStore, enrollments *mockEnrollmentReader, sections *mockSectionReader, gate *mockGate) *GradeService {
	return NewGradeService(store, enrollments, sections, gate, NewValidator(), zap.NewNop())
}

func TestEnterComponent(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	component, err := svc.EnterComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "enr-1", EnterComponentRequest{
		ComponentName: "Midterm",
		Score:         decimal.RequireFromString("18"),
		MaxScore:      decimal.RequireFromString("20"),
		WeightagePct:  decimal.RequireFromString("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, "gc-1", component.ID)
	assert.Equal(t, "Midterm", component.ComponentName)
}

func TestEnterComponentForeignInstructor(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	_, err := svc.EnterComponent(context.Background(), Actor{ID: "inst-2", Role: models.RoleInstructor}, "enr-1", EnterComponentRequest{
		ComponentName: "Midterm",
		Score:         decimal.RequireFromString("18"),
		MaxScore:      decimal.RequireFromString("20"),
		WeightagePct:  decimal.RequireFromString("30"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnterComponentStudentForbidden(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	_, err := svc.EnterComponent(context.Background(), Actor{ID: "stu-1", Role: models.RoleStudent}, "enr-1", EnterComponentRequest{
		ComponentName: "Midterm",
		Score:         decimal.RequireFromString("18"),
		MaxScore:      decimal.RequireFromString("20"),
		WeightagePct:  decimal.RequireFromString("30"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnterComponentMaintenanceBlocked(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	gate.blocked = true
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	_, err := svc.EnterComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "enr-1", EnterComponentRequest{
		ComponentName: "Midterm",
		Score:         decimal.RequireFromString("18"),
		MaxScore:      decimal.RequireFromString("20"),
		WeightagePct:  decimal.RequireFromString("30"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMaintenanceMode.Code, appErrors.FromError(err).Code)
}

func TestEnterComponentInvalidScores(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)
	actor := Actor{ID: "inst-1", Role: models.RoleInstructor}

	cases := []EnterComponentRequest{
		{ComponentName: "A", Score: decimal.RequireFromString("5"), MaxScore: decimal.Zero, WeightagePct: decimal.RequireFromString("10")},
		{ComponentName: "B", Score: decimal.RequireFromString("25"), MaxScore: decimal.RequireFromString("20"), WeightagePct: decimal.RequireFromString("10")},
		{ComponentName: "C", Score: decimal.RequireFromString("-1"), MaxScore: decimal.RequireFromString("20"), WeightagePct: decimal.RequireFromString("10")},
		{ComponentName: "D", Score: decimal.RequireFromString("5"), MaxScore: decimal.RequireFromString("20"), WeightagePct: decimal.RequireFromString("101")},
	}
	for _, req := range cases {
		_, err := svc.EnterComponent(context.Background(), actor, "enr-1", req)
		require.Error(t, err, "component %s", req.ComponentName)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestEnterComponentWeightageExceeded(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	store.createErr = &repository.WeightageExceededError{
		Current:   decimal.RequireFromString("80"),
		Attempted: decimal.RequireFromString("25"),
		Total:     decimal.RequireFromString("105"),
	}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	_, err := svc.EnterComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "enr-1", EnterComponentRequest{
		ComponentName: "Final",
		Score:         decimal.RequireFromString("50"),
		MaxScore:      decimal.RequireFromString("60"),
		WeightagePct:  decimal.RequireFromString("25"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrWeightageExceeded.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "105.00")
	assert.Contains(t, appErr.Message, "80.00")
}

func TestEnterComponentDuplicate(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	store.createErr = repository.ErrDuplicateComponent
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	_, err := svc.EnterComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "enr-1", EnterComponentRequest{
		ComponentName: "Midterm",
		Score:         decimal.RequireFromString("18"),
		MaxScore:      decimal.RequireFromString("20"),
		WeightagePct:  decimal.RequireFromString("30"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSummary(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	store.byEnroll["enr-1"] = []models.GradeComponent{
		component("Midterm", "18", "20", "30"),
		component("Quiz", "8", "10", "10"),
		component("Lab", "15", "50", "10"),
	}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	summary, err := svc.Summary(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Len(t, summary.Components, 3)
	assert.Equal(t, "50", summary.TotalWeightage.String())
	require.NotNil(t, summary.FinalPercentage)
	assert.Equal(t, "38.00", summary.FinalPercentage.StringFixed(2))
	require.NotNil(t, summary.LetterGrade)
	assert.Equal(t, "F", *summary.LetterGrade)
}

func TestSummaryEmptyGradebook(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	summary, err := svc.Summary(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Nil(t, summary.FinalPercentage)
	assert.Nil(t, summary.LetterGrade)
}

func TestCGPA(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	enrollments.byStudent = map[string][]models.EnrollmentDetail{
		"stu-1": {
			{Enrollment: models.Enrollment{ID: "enr-1"}, CourseCredits: 4},
			{Enrollment: models.Enrollment{ID: "enr-2"}, CourseCredits: 2},
			{Enrollment: models.Enrollment{ID: "enr-3"}, CourseCredits: 3},
		},
	}
	// enr-1: 96% -> A+ (10.0), enr-2: 76% -> B (7.0), enr-3 ungraded.
	store.byEnroll = map[string][]models.GradeComponent{
		"enr-1": {component("Final", "96", "100", "100")},
		"enr-2": {component("Final", "76", "100", "100")},
	}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	result, err := svc.CGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	// (10*4 + 7*2) / 6 = 9.00
	assert.Equal(t, "9.00", result.CGPA.StringFixed(2))
	assert.Equal(t, 2, result.GradedCourses)
	assert.Equal(t, 6, result.TotalCredits)
}

func TestCGPADefaultCredits(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	enrollments.byStudent = map[string][]models.EnrollmentDetail{
		"stu-1": {{Enrollment: models.Enrollment{ID: "enr-1"}, CourseCredits: 0}},
	}
	store.byEnroll = map[string][]models.GradeComponent{
		"enr-1": {component("Final", "80", "100", "100")},
	}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	result, err := svc.CGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.TotalCredits)
	assert.Equal(t, "8.00", result.CGPA.StringFixed(2))
}

func TestCGPANoGradedCourses(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	result, err := svc.CGPA(context.Background(), "stu-unknown")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSectionStatistics(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	enrollments.bySection = map[string][]models.Enrollment{
		"sec-1": {{ID: "enr-1"}, {ID: "enr-2"}, {ID: "enr-3"}},
	}
	store.byEnroll = map[string][]models.GradeComponent{
		"enr-1": {component("Final", "90", "100", "100")},
		"enr-2": {component("Final", "70", "100", "100")},
	}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	stats, err := svc.SectionStatistics(context.Background(), "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 2, stats.StudentsWithGrades)
	require.NotNil(t, stats.ClassAverage)
	assert.Equal(t, "80.00", stats.ClassAverage.StringFixed(2))
}

func TestDeleteComponent(t *testing.T) {
	store, enrollments, sections, gate := instructorFixture()
	store.components["gc-1"] = &models.GradeComponent{ID: "gc-1", EnrollmentID: "enr-1"}
	svc := newGradeServiceForTest(store, enrollments, sections, gate)

	require.NoError(t, svc.DeleteComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "gc-1"))

	err := svc.DeleteComponent(context.Background(), Actor{ID: "inst-1", Role: models.RoleInstructor}, "gc-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
