package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type identityProvisioner interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, id string) error
}

type profileProvisioner interface {
	CreateStudent(ctx context.Context, profile *models.StudentProfile) error
	CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error
}

// CreateUserRequest provisions one account across both stores. The profile
// fields are required per role: roll_no/program/year for students,
// employee_id/department for instructors, none for admins.
type CreateUserRequest struct {
	Username string      `json:"username" validate:"required,min=3,max=64"`
	Password string      `json:"password" validate:"required,min=8,strongpw"`
	Role     models.Role `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR ADMIN"`

	RollNo  string `json:"roll_no,omitempty"`
	Program string `json:"program,omitempty"`
	Year    int    `json:"year,omitempty"`

	EmployeeID string `json:"employee_id,omitempty"`
	Department string `json:"department,omitempty"`
}

// CreatedUser is the provisioning result.
type CreatedUser struct {
	Identity   models.IdentityInfo       `json:"identity"`
	Student    *models.StudentProfile    `json:"student_profile,omitempty"`
	Instructor *models.InstructorProfile `json:"instructor_profile,omitempty"`
}

// ProvisioningService creates accounts spanning the credential and academic
// stores. The two stores share no transaction; a profile failure triggers a
// compensating delete of the identity so no half-provisioned login survives.
type ProvisioningService struct {
	identities identityProvisioner
	profiles   profileProvisioner
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// NewProvisioningService constructs ProvisioningService.
func NewProvisioningService(identities identityProvisioner, profiles profileProvisioner, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *ProvisioningService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &ProvisioningService{
		identities: identities,
		profiles:   profiles,
		validator:  validate,
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// CreateUser provisions an identity and, for students and instructors, the
// matching academic profile. Order is fixed: identity first, profile second,
// compensating identity delete on profile failure.
func (s *ProvisioningService) CreateUser(ctx context.Context, req CreateUserRequest) (*CreatedUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if err := s.validateProfileFields(req); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	taken, err := s.identities.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("username %q is already taken", username))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	identity := &models.Identity{
		Username:     username,
		PasswordHash: string(hash),
		Role:         req.Role,
		Status:       models.IdentityActive,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create identity")
	}

	result := &CreatedUser{Identity: models.IdentityInfo{ID: identity.ID, Username: identity.Username, Role: identity.Role}}

	switch req.Role {
	case models.RoleStudent:
		profile := &models.StudentProfile{
			IdentityID: identity.ID,
			RollNo:     strings.TrimSpace(req.RollNo),
			Program:    strings.TrimSpace(req.Program),
			Year:       req.Year,
		}
		if err := s.profiles.CreateStudent(ctx, profile); err != nil {
			return nil, s.compensate(ctx, identity.ID, username, err)
		}
		result.Student = profile
	case models.RoleInstructor:
		profile := &models.InstructorProfile{
			IdentityID: identity.ID,
			EmployeeID: strings.TrimSpace(req.EmployeeID),
			Department: strings.TrimSpace(req.Department),
		}
		if err := s.profiles.CreateInstructor(ctx, profile); err != nil {
			return nil, s.compensate(ctx, identity.ID, username, err)
		}
		result.Instructor = profile
	case models.RoleAdmin:
		// Admins carry no academic profile.
	}

	s.logger.Info("user provisioned",
		zap.String("identity_id", identity.ID),
		zap.String("username", username),
		zap.String("role", string(req.Role)))
	return result, nil
}

// compensate deletes the identity created before the profile write failed. If
// the delete itself fails the identity is orphaned and the error names it so
// an operator can clean up by id.
func (s *ProvisioningService) compensate(ctx context.Context, identityID, username string, cause error) error {
	s.logger.Error("profile creation failed, compensating",
		zap.String("identity_id", identityID), zap.Error(cause))

	if err := s.identities.Delete(ctx, identityID); err != nil {
		s.logger.Error("compensating delete failed, identity orphaned",
			zap.String("identity_id", identityID), zap.Error(err))
		return appErrors.Wrap(cause, appErrors.ErrProvisioningOrphan.Code, appErrors.ErrProvisioningOrphan.Status,
			fmt.Sprintf("profile creation failed and identity %s could not be removed, manual cleanup required", identityID))
	}

	return appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
		fmt.Sprintf("failed to create profile for %q, account was not created", username))
}

func (s *ProvisioningService) validateProfileFields(req CreateUserRequest) error {
	switch req.Role {
	case models.RoleStudent:
		if strings.TrimSpace(req.RollNo) == "" || strings.TrimSpace(req.Program) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "roll_no and program are required for students")
		}
		if req.Year < 1 || req.Year > 8 {
			return appErrors.Clone(appErrors.ErrValidation, "year must be between 1 and 8")
		}
	case models.RoleInstructor:
		if strings.TrimSpace(req.EmployeeID) == "" || strings.TrimSpace(req.Department) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "employee_id and department are required for instructors")
		}
	}
	return nil
}
