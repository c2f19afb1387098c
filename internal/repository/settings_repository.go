package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// SettingsRepository reads and writes the global settings key/value rows.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get assembles the settings snapshot. Missing rows fall back to the
// historical defaults: maintenance off, add/drop open.
func (r *SettingsRepository) Get(ctx context.Context) (models.GlobalSettings, error) {
	settings := models.GlobalSettings{MaintenanceMode: false, AddDropEnabled: true}

	const query = `SELECT setting_key, setting_value FROM settings WHERE setting_key IN ($1, $2)`
	rows, err := r.db.QueryxContext(ctx, query, models.SettingMaintenanceMode, models.SettingAddDropEnabled)
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scan setting: %w", err)
		}
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		switch key {
		case models.SettingMaintenanceMode:
			settings.MaintenanceMode = enabled
		case models.SettingAddDropEnabled:
			settings.AddDropEnabled = enabled
		}
	}
	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	return settings, nil
}

// Set upserts one switch.
func (r *SettingsRepository) Set(ctx context.Context, key string, enabled bool) error {
	const query = `INSERT INTO settings (setting_key, setting_value) VALUES ($1, $2)
        ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`
	res, err := r.db.ExecContext(ctx, query, key, strconv.FormatBool(enabled))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
