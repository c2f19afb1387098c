package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type identityAdminStore interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	UpdateStatus(ctx context.Context, id string, status models.IdentityStatus, ts time.Time) error
	List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, int, error)
}

// UserService is the admin view over identities: listing, status changes and
// unlock. Provisioning and password resets live in their own services.
type UserService struct {
	store  identityAdminStore
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService constructs UserService.
func NewUserService(store identityAdminStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, logger: logger, now: time.Now}
}

// List returns identities matching the filter plus the unpaged total.
func (s *UserService) List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, int, error) {
	identities, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return identities, total, nil
}

// Find returns one identity.
func (s *UserService) Find(ctx context.Context, identityID string) (*models.Identity, error) {
	identity, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return identity, nil
}

// UpdateStatus sets an account's status. Setting ACTIVE also clears the
// failure counter, which is how a locked account is unlocked.
func (s *UserService) UpdateStatus(ctx context.Context, identityID string, status models.IdentityStatus) (*models.Identity, error) {
	switch status {
	case models.IdentityActive, models.IdentityInactive, models.IdentityLocked:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE, INACTIVE or LOCKED")
	}

	if err := s.store.UpdateStatus(ctx, identityID, status, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}

	s.logger.Info("user status changed", zap.String("identity_id", identityID), zap.String("status", string(status)))
	return s.Find(ctx, identityID)
}

// Unlock reactivates a locked account.
func (s *UserService) Unlock(ctx context.Context, identityID string) (*models.Identity, error) {
	return s.UpdateStatus(ctx, identityID, models.IdentityActive)
}
