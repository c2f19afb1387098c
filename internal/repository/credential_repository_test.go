package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "status", "failed_attempts", "last_login", "created_at", "updated_at"}).
		AddRow("1", "alice", "hash", string(models.RoleStudent), string(models.IdentityActive), 0, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash, role, status, failed_attempts, last_login, created_at, updated_at FROM identities WHERE username = $1 LIMIT 1")).
		WithArgs("alice").
		WillReturnRows(rows)

	identity, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, models.RoleStudent, identity.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureIncrements(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"failed_attempts", "status"}).AddRow(3, string(models.IdentityActive))
	mock.ExpectQuery("UPDATE identities").
		WithArgs("1", 5, ts).
		WillReturnRows(rows)

	attempts, status, err := repo.RecordLoginFailure(context.Background(), "1", 5, ts)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, models.IdentityActive, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureLocks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"failed_attempts", "status"}).AddRow(5, string(models.IdentityLocked))
	mock.ExpectQuery("UPDATE identities").
		WithArgs("1", 5, ts).
		WillReturnRows(rows)

	attempts, status, err := repo.RecordLoginFailure(context.Background(), "1", 5, ts)
	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, models.IdentityLocked, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordMissingIdentity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec("UPDATE identities SET password_hash").
		WithArgs("missing", "hash", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "missing", "hash", ts)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusClearsCounterOnActivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec("UPDATE identities").
		WithArgs("1", string(models.IdentityActive), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "1", models.IdentityActive, ts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIdentity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	mock.ExpectExec("INSERT INTO identities").WillReturnResult(sqlmock.NewResult(1, 1))

	identity := &models.Identity{Username: "dave", PasswordHash: "hash", Role: models.RoleAdmin}
	err := repo.Create(context.Background(), identity)
	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, models.IdentityActive, identity.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
