package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// ProfileRepository handles persistence of academic profiles. Profiles live in
// the academic store, keyed by the identity id from the credential store.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateStudent inserts a student profile.
func (r *ProfileRepository) CreateStudent(ctx context.Context, profile *models.StudentProfile) error {
	const query = `INSERT INTO student_profiles (identity_id, roll_no, program, year)
        VALUES (:identity_id, :roll_no, :program, :year)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create student profile: %w", err)
	}
	return nil
}

// CreateInstructor inserts an instructor profile.
func (r *ProfileRepository) CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error {
	const query = `INSERT INTO instructor_profiles (identity_id, employee_id, department)
        VALUES (:identity_id, :employee_id, :department)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create instructor profile: %w", err)
	}
	return nil
}

// FindStudent returns the student profile for an identity.
func (r *ProfileRepository) FindStudent(ctx context.Context, identityID string) (*models.StudentProfile, error) {
	const query = `SELECT identity_id, roll_no, program, year FROM student_profiles WHERE identity_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, identityID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindInstructor returns the instructor profile for an identity.
func (r *ProfileRepository) FindInstructor(ctx context.Context, identityID string) (*models.InstructorProfile, error) {
	const query = `SELECT identity_id, employee_id, department FROM instructor_profiles WHERE identity_id = $1`
	var profile models.InstructorProfile
	if err := r.db.GetContext(ctx, &profile, query, identityID); err != nil {
		return nil, err
	}
	return &profile, nil
}
