package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type mockSettingsRepo struct {
	settings models.GlobalSettings
	getErr   error
	setErr   error
	written  map[string]bool
}

func (m *mockSettingsRepo) Get(ctx context.Context) (models.GlobalSettings, error) {
	if m.getErr != nil {
		// Safe defaults travel with the error, mirroring the repository.
		return models.GlobalSettings{MaintenanceMode: false, AddDropEnabled: true}, m.getErr
	}
	return m.settings, nil
}

func (m *mockSettingsRepo) Set(ctx context.Context, key string, enabled bool) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.written == nil {
		m.written = make(map[string]bool)
	}
	m.written[key] = enabled
	switch key {
	case models.SettingMaintenanceMode:
		m.settings.MaintenanceMode = enabled
	case models.SettingAddDropEnabled:
		m.settings.AddDropEnabled = enabled
	}
	return nil
}

func newSettingsServiceForTest(repo *mockSettingsRepo) *SettingsService {
	return NewSettingsService(repo, nil, time.Second, zap.NewNop(), nil)
}

func TestSnapshotDefaultsOnStoreFailure(t *testing.T) {
	repo := &mockSettingsRepo{getErr: errors.New("db down")}
	svc := newSettingsServiceForTest(repo)

	snapshot := svc.Snapshot(context.Background())
	assert.False(t, snapshot.MaintenanceMode)
	assert.True(t, snapshot.AddDropEnabled)
}

func TestGateMutation(t *testing.T) {
	repo := &mockSettingsRepo{settings: models.GlobalSettings{MaintenanceMode: true, AddDropEnabled: true}}
	svc := newSettingsServiceForTest(repo)

	err := svc.GateMutation(context.Background(), models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMaintenanceMode.Code, appErrors.FromError(err).Code)

	assert.NoError(t, svc.GateMutation(context.Background(), models.RoleAdmin))

	repo.settings.MaintenanceMode = false
	assert.NoError(t, svc.GateMutation(context.Background(), models.RoleInstructor))
}

func TestGateRegisterOrDrop(t *testing.T) {
	cases := []struct {
		name        string
		maintenance bool
		addDrop     bool
		role        models.Role
		wantCode    string
	}{
		{"open", false, true, models.RoleStudent, ""},
		{"add drop closed", false, false, models.RoleStudent, appErrors.ErrAddDropClosed.Code},
		{"maintenance", true, true, models.RoleStudent, appErrors.ErrMaintenanceMode.Code},
		{"add drop reported before maintenance", true, false, models.RoleStudent, appErrors.ErrAddDropClosed.Code},
		{"admin bypasses everything", true, false, models.RoleAdmin, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockSettingsRepo{settings: models.GlobalSettings{MaintenanceMode: tc.maintenance, AddDropEnabled: tc.addDrop}}
			svc := newSettingsServiceForTest(repo)

			err := svc.GateRegisterOrDrop(context.Background(), tc.role)
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestToggleSettings(t *testing.T) {
	repo := &mockSettingsRepo{settings: models.GlobalSettings{AddDropEnabled: true}}
	svc := newSettingsServiceForTest(repo)

	settings, err := svc.SetMaintenanceMode(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, settings.MaintenanceMode)
	assert.True(t, repo.written[models.SettingMaintenanceMode])

	settings, err = svc.SetAddDropEnabled(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, settings.AddDropEnabled)
}

func TestToggleFailure(t *testing.T) {
	repo := &mockSettingsRepo{setErr: errors.New("write failed")}
	svc := newSettingsServiceForTest(repo)

	_, err := svc.SetMaintenanceMode(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
