package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// SectionRepository handles persistence of scheduled course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionDetailSelect = `SELECT s.id, s.course_id, s.instructor_id, s.code, s.schedule, s.room,
        s.capacity, s.enrolled_count, s.term, s.year, s.status, s.created_at, s.updated_at,
        c.code AS course_code, c.title AS course_title, c.credits AS course_credits
        FROM sections s
        JOIN courses c ON c.id = s.course_id`

// FindByID returns a section by id.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, instructor_id, code, schedule, room, capacity, enrolled_count,
        term, year, status, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section joined with its course.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	query := sectionDetailSelect + ` WHERE s.id = $1`
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now
	if section.Status == "" {
		section.Status = models.SectionActive
	}
	const query = `INSERT INTO sections (id, course_id, instructor_id, code, schedule, room, capacity,
        enrolled_count, term, year, status, created_at, updated_at)
        VALUES (:id, :course_id, :instructor_id, :code, :schedule, :room, :capacity,
        :enrolled_count, :term, :year, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update rewrites a section's mutable fields. enrolled_count is deliberately
// untouched here; only Register/Drop move it.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	const query = `UPDATE sections SET instructor_id = $2, code = $3, schedule = $4, room = $5,
        capacity = $6, term = $7, year = $8, status = $9, updated_at = $10 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, section.ID, section.InstructorID, section.Code, section.Schedule,
		section.Room, section.Capacity, section.Term, section.Year, section.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a section. Callers refuse deletion while students remain
// enrolled; the guard here is only against racing registrations.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sections WHERE id = $1 AND enrolled_count = 0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns all sections with course context.
func (r *SectionRepository) List(ctx context.Context) ([]models.SectionDetail, error) {
	query := sectionDetailSelect + ` ORDER BY c.code, s.code`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListByInstructor returns the sections an instructor teaches.
func (r *SectionRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.SectionDetail, error) {
	query := sectionDetailSelect + ` WHERE s.instructor_id = $1 ORDER BY c.code, s.code`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor sections: %w", err)
	}
	return sections, nil
}
