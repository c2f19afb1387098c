package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// GradeRepository handles persistence of grade components. Creation and update
// lock the parent enrollment row while the weightage budget is re-checked, so
// two concurrent inserts cannot push the sum past 100.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = `id, enrollment_id, component_name, score, max_score, weightage_pct, created_at, updated_at`

var hundred = decimal.NewFromInt(100)

// CreateComponent inserts a grade component after re-checking, inside one
// transaction, the case-insensitive name uniqueness and the weightage budget.
func (r *GradeRepository) CreateComponent(ctx context.Context, component *models.GradeComponent) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin create component: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Locking the enrollment row serializes all gradebook writes for it; FOR
	// UPDATE on the component rows alone would not cover the first insert.
	const lockEnrollment = `SELECT 1 FROM enrollments WHERE id = $1 FOR UPDATE`
	var one int
	if err := tx.GetContext(ctx, &one, lockEnrollment, component.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return ErrEnrollmentNotFound
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	const dupName = `SELECT 1 FROM grade_components WHERE enrollment_id = $1 AND LOWER(component_name) = LOWER($2) LIMIT 1`
	err = tx.GetContext(ctx, &one, dupName, component.EnrollmentID, component.ComponentName)
	if err == nil {
		return ErrDuplicateComponent
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check duplicate component: %w", err)
	}

	current, err := totalWeightage(ctx, tx, component.EnrollmentID, "")
	if err != nil {
		return err
	}
	if total := current.Add(component.WeightagePct); total.GreaterThan(hundred) {
		return &WeightageExceededError{Current: current, Attempted: component.WeightagePct, Total: total}
	}

	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	component.CreatedAt = now
	component.UpdatedAt = now

	const insert = `INSERT INTO grade_components (id, enrollment_id, component_name, score, max_score, weightage_pct, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insert, component.ID, component.EnrollmentID, component.ComponentName,
		component.Score, component.MaxScore, component.WeightagePct, component.CreatedAt, component.UpdatedAt); err != nil {
		return fmt.Errorf("insert grade component: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create component: %w", err)
	}
	return nil
}

// UpdateComponent rewrites a component, re-checking the weightage budget
// against the other components of the same enrollment.
func (r *GradeRepository) UpdateComponent(ctx context.Context, component *models.GradeComponent) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin update component: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing models.GradeComponent
	getQuery := fmt.Sprintf(`SELECT %s FROM grade_components WHERE id = $1`, gradeColumns)
	if err := tx.GetContext(ctx, &existing, getQuery, component.ID); err != nil {
		if err == sql.ErrNoRows {
			return ErrComponentNotFound
		}
		return fmt.Errorf("load grade component: %w", err)
	}
	component.EnrollmentID = existing.EnrollmentID

	const lockEnrollment = `SELECT 1 FROM enrollments WHERE id = $1 FOR UPDATE`
	var one int
	if err := tx.GetContext(ctx, &one, lockEnrollment, existing.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return ErrEnrollmentNotFound
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	otherTotal, err := totalWeightage(ctx, tx, existing.EnrollmentID, component.ID)
	if err != nil {
		return err
	}
	if total := otherTotal.Add(component.WeightagePct); total.GreaterThan(hundred) {
		return &WeightageExceededError{Current: otherTotal, Attempted: component.WeightagePct, Total: total}
	}

	const update = `UPDATE grade_components SET score = $2, max_score = $3, weightage_pct = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, component.ID, component.Score, component.MaxScore,
		component.WeightagePct, time.Now().UTC()); err != nil {
		return fmt.Errorf("update grade component: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update component: %w", err)
	}
	return nil
}

// DeleteComponent removes a component from the gradebook.
func (r *GradeRepository) DeleteComponent(ctx context.Context, id string) error {
	const query = `DELETE FROM grade_components WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete grade component: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete grade component: %w", err)
	}
	if affected == 0 {
		return ErrComponentNotFound
	}
	return nil
}

// FindByID returns a single grade component.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	query := fmt.Sprintf(`SELECT %s FROM grade_components WHERE id = $1`, gradeColumns)
	var component models.GradeComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// ListByEnrollment returns all components of one enrollment.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeComponent, error) {
	query := fmt.Sprintf(`SELECT %s FROM grade_components WHERE enrollment_id = $1 ORDER BY created_at`, gradeColumns)
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list grade components: %w", err)
	}
	return components, nil
}

// TotalWeightage returns the current weightage sum for an enrollment.
func (r *GradeRepository) TotalWeightage(ctx context.Context, enrollmentID string) (decimal.Decimal, error) {
	return totalWeightage(ctx, r.db, enrollmentID, "")
}

func totalWeightage(ctx context.Context, q sqlx.QueryerContext, enrollmentID, excludeID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(weightage_pct), 0) FROM grade_components WHERE enrollment_id = $1`
	args := []interface{}{enrollmentID}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &total, query, args...); err != nil {
		return decimal.Zero, fmt.Errorf("total weightage: %w", err)
	}
	return total, nil
}
