package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type mockIdentityProvisioner struct {
	taken     bool
	createErr error
	deleteErr error
	created   *models.Identity
	deleted   []string
}

func (m *mockIdentityProvisioner) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return m.taken, nil
}

func (m *mockIdentityProvisioner) Create(ctx context.Context, identity *models.Identity) error {
	if m.createErr != nil {
		return m.createErr
	}
	identity.ID = "id-new"
	m.created = identity
	return nil
}

func (m *mockIdentityProvisioner) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockProfileProvisioner struct {
	studentErr    error
	instructorErr error
	students      []*models.StudentProfile
	instructors   []*models.InstructorProfile
}

func (m *mockProfileProvisioner) CreateStudent(ctx context.Context, profile *models.StudentProfile) error {
	if m.studentErr != nil {
		return m.studentErr
	}
	m.students = append(m.students, profile)
	return nil
}

func (m *mockProfileProvisioner) CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error {
	if m.instructorErr != nil {
		return m.instructorErr
	}
	m.instructors = append(m.instructors, profile)
	return nil
}

func newProvisioningServiceForTest(identities *mockIdentityProvisioner, profiles *mockProfileProvisioner) *ProvisioningService {
	return NewProvisioningService(identities, profiles, NewValidator(), zap.NewNop(), bcrypt.MinCost)
}

func studentRequest() CreateUserRequest {
	return CreateUserRequest{
		Username: "bob",
		Password: "Secret1pass",
		Role:     models.RoleStudent,
		RollNo:   "2026CS042",
		Program:  "Computer Science",
		Year:     2,
	}
}

func TestCreateStudent(t *testing.T) {
	identities := &mockIdentityProvisioner{}
	profiles := &mockProfileProvisioner{}
	svc := newProvisioningServiceForTest(identities, profiles)

	user, err := svc.CreateUser(context.Background(), studentRequest())
	require.NoError(t, err)
	assert.Equal(t, "id-new", user.Identity.ID)
	require.NotNil(t, user.Student)
	assert.Equal(t, "id-new", user.Student.IdentityID)
	assert.Equal(t, "2026CS042", user.Student.RollNo)
	require.Len(t, profiles.students, 1)
	assert.Empty(t, identities.deleted)

	// The stored hash verifies against the plaintext and is never the plaintext.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(identities.created.PasswordHash), []byte("Secret1pass")))
}

func TestCreateInstructor(t *testing.T) {
	identities := &mockIdentityProvisioner{}
	profiles := &mockProfileProvisioner{}
	svc := newProvisioningServiceForTest(identities, profiles)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:   "carol",
		Password:   "Secret1pass",
		Role:       models.RoleInstructor,
		EmployeeID: "EMP-7",
		Department: "Mathematics",
	})
	require.NoError(t, err)
	require.NotNil(t, user.Instructor)
	assert.Equal(t, "EMP-7", user.Instructor.EmployeeID)
	assert.Nil(t, user.Student)
}

func TestCreateAdminHasNoProfile(t *testing.T) {
	identities := &mockIdentityProvisioner{}
	profiles := &mockProfileProvisioner{}
	svc := newProvisioningServiceForTest(identities, profiles)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username: "root",
		Password: "Secret1pass",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Nil(t, user.Student)
	assert.Nil(t, user.Instructor)
	assert.Empty(t, profiles.students)
	assert.Empty(t, profiles.instructors)
}

func TestCreateUserUsernameTaken(t *testing.T) {
	identities := &mockIdentityProvisioner{taken: true}
	svc := newProvisioningServiceForTest(identities, &mockProfileProvisioner{})

	_, err := svc.CreateUser(context.Background(), studentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, identities.created)
}

func TestCreateUserMissingProfileFields(t *testing.T) {
	svc := newProvisioningServiceForTest(&mockIdentityProvisioner{}, &mockProfileProvisioner{})

	req := studentRequest()
	req.RollNo = ""
	_, err := svc.CreateUser(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateUserCompensatesOnProfileFailure(t *testing.T) {
	identities := &mockIdentityProvisioner{}
	profiles := &mockProfileProvisioner{studentErr: errors.New("academic store down")}
	svc := newProvisioningServiceForTest(identities, profiles)

	_, err := svc.CreateUser(context.Background(), studentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	// The half-created identity was removed.
	assert.Equal(t, []string{"id-new"}, identities.deleted)
}

func TestCreateUserOrphanWhenCompensationFails(t *testing.T) {
	identities := &mockIdentityProvisioner{deleteErr: errors.New("auth store down")}
	profiles := &mockProfileProvisioner{studentErr: errors.New("academic store down")}
	svc := newProvisioningServiceForTest(identities, profiles)

	_, err := svc.CreateUser(context.Background(), studentRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrProvisioningOrphan.Code, appErr.Code)
	// The orphaned identity is named for manual cleanup.
	assert.Contains(t, appErr.Message, "id-new")
}

func TestCreateUserWeakPassword(t *testing.T) {
	svc := newProvisioningServiceForTest(&mockIdentityProvisioner{}, &mockProfileProvisioner{})

	req := studentRequest()
	req.Password = "alllowercase1"
	_, err := svc.CreateUser(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
