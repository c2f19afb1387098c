package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// CredentialRepository handles persistence of identities in the auth store.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs the repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const identityColumns = `id, username, password_hash, role, status, failed_attempts, last_login, created_at, updated_at`

// FindByUsername returns the identity for a username.
func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) (*models.Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM identities WHERE username = $1 LIMIT 1`, identityColumns)
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, username); err != nil {
		return nil, err
	}
	return &identity, nil
}

// FindByID returns the identity for an id.
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM identities WHERE id = $1 LIMIT 1`, identityColumns)
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ExistsByUsername reports whether a username is already taken.
func (r *CredentialRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT 1 FROM identities WHERE username = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// RecordLoginSuccess clears the failure counter and stamps last_login in a
// single row-locked update.
func (r *CredentialRepository) RecordLoginSuccess(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE identities SET failed_attempts = 0, last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

// RecordLoginFailure increments the failure counter and, when the post-increment
// value reaches maxAttempts, flips status to LOCKED in the same statement, so
// the counter and the lock can never diverge under concurrent attempts.
func (r *CredentialRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, ts time.Time) (int, models.IdentityStatus, error) {
	const query = `UPDATE identities
        SET failed_attempts = failed_attempts + 1,
            status = CASE WHEN failed_attempts + 1 >= $2 THEN 'LOCKED' ELSE status END,
            updated_at = $3
        WHERE id = $1
        RETURNING failed_attempts, status`
	var (
		attempts int
		status   models.IdentityStatus
	)
	if err := r.db.QueryRowxContext(ctx, query, id, maxAttempts, ts).Scan(&attempts, &status); err != nil {
		return 0, "", fmt.Errorf("record login failure: %w", err)
	}
	return attempts, status, nil
}

// UpdatePassword replaces the stored hash.
func (r *CredentialRepository) UpdatePassword(ctx context.Context, id, passwordHash string, ts time.Time) error {
	const query = `UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, ts)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertPasswordHistory appends an immutable history row. Never read back by
// the application; retained for audit.
func (r *CredentialRepository) InsertPasswordHistory(ctx context.Context, identityID, passwordHash string, ts time.Time) error {
	const query = `INSERT INTO password_history (id, identity_id, password_hash, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), identityID, passwordHash, ts); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}
	return nil
}

// Create inserts a new identity.
func (r *CredentialRepository) Create(ctx context.Context, identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	if identity.Status == "" {
		identity.Status = models.IdentityActive
	}
	const query = `INSERT INTO identities (id, username, password_hash, role, status, failed_attempts, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :role, :status, :failed_attempts, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// Delete removes an identity row. Only the provisioning compensation path uses
// this; normal deactivation goes through UpdateStatus.
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM identities WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the account status. Re-activating clears the failure
// counter so the lockout invariant holds from the reset onward.
func (r *CredentialRepository) UpdateStatus(ctx context.Context, id string, status models.IdentityStatus, ts time.Time) error {
	const query = `UPDATE identities
        SET status = $2,
            failed_attempts = CASE WHEN $2 = 'ACTIVE' THEN 0 ELSE failed_attempts END,
            updated_at = $3
        WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, ts)
	if err != nil {
		return fmt.Errorf("update identity status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns identities filtered by the provided criteria.
func (r *CredentialRepository) List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("username ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM identities%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		identityColumns, clause, size, offset)

	var identities []models.Identity
	if err := r.db.SelectContext(ctx, &identities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM identities" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}
	return identities, total, nil
}
