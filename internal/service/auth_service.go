package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
)

type credentialRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	RecordLoginSuccess(ctx context.Context, id string, ts time.Time) error
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, ts time.Time) (int, models.IdentityStatus, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, ts time.Time) error
	InsertPasswordHistory(ctx context.Context, identityID, passwordHash string, ts time.Time) error
}

// AuthServiceConfig tunes login, lockout and token issuance.
type AuthServiceConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	MaxFailedAttempts int
	BcryptCost        int
	MinPasswordLength int
}

// AuthService provides authentication and password management.
type AuthService struct {
	repo      credentialRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthServiceConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo credentialRepository, validate *validator.Validate, logger *zap.Logger, config AuthServiceConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.MaxFailedAttempts <= 0 {
		config.MaxFailedAttempts = 5
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 8
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login authenticates a user and returns an issued access token. Unknown
// usernames and wrong passwords produce the same INVALID_CREDENTIALS outcome;
// locked and inactive accounts short-circuit before the hash comparison.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "please enter username and password")
	}

	identity, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same outcome as a wrong password; usernames are not probeable.
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}

	if identity.Status == models.IdentityLocked {
		s.logger.Warn("login attempt on locked account", zap.String("username", username))
		return nil, appErrors.Clone(appErrors.ErrAccountLocked, "account is locked due to too many failed login attempts, contact an administrator")
	}
	if identity.Status == models.IdentityInactive {
		s.logger.Warn("login attempt on inactive account", zap.String("username", username))
		return nil, appErrors.Clone(appErrors.ErrAccountInactive, "account is inactive, contact an administrator")
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		attempts, status, err := s.repo.RecordLoginFailure(ctx, identity.ID, s.config.MaxFailedAttempts, s.now().UTC())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record login failure")
		}
		s.logger.Warn("failed login attempt", zap.String("username", username), zap.Int("attempts", attempts))

		if status == models.IdentityLocked || attempts >= s.config.MaxFailedAttempts {
			return nil, appErrors.Clone(appErrors.ErrAccountLocked, "account is locked due to too many failed login attempts, contact an administrator")
		}
		if remaining := s.config.MaxFailedAttempts - attempts; remaining <= 2 {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials,
				fmt.Sprintf("incorrect username or password, %d attempt(s) remaining before account is locked", remaining))
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	issuedAt := s.now().UTC()
	if err := s.repo.RecordLoginSuccess(ctx, identity.ID, issuedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record login")
	}

	token, err := s.generateAccessToken(identity, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("successful login", zap.String("username", username))
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		Identity: models.IdentityInfo{
			ID:       identity.ID,
			Username: identity.Username,
			Role:     identity.Role,
		},
	}, nil
}

// ChangePassword changes the password for the given identity after verifying
// the old one. The full character-class policy is enforced at the request
// boundary; the gate itself requires only the minimum length.
func (s *AuthService) ChangePassword(ctx context.Context, identityID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}
	if len(req.NewPassword) < s.config.MinPasswordLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", s.config.MinPasswordLength))
	}

	identity, err := s.repo.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(strings.TrimSpace(req.OldPassword))) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	return s.storePassword(ctx, identityID, strings.TrimSpace(req.NewPassword))
}

// AdminResetPassword replaces a password without the old-password check. The
// caller must already have verified admin privilege.
func (s *AuthService) AdminResetPassword(ctx context.Context, identityID, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < s.config.MinPasswordLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", s.config.MinPasswordLength))
	}
	if _, err := s.repo.FindByID(ctx, identityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}
	return s.storePassword(ctx, identityID, newPassword)
}

func (s *AuthService) storePassword(ctx context.Context, identityID, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.config.BcryptCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now().UTC()
	if err := s.repo.UpdatePassword(ctx, identityID, string(hash), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	// History is append-only audit data; a write failure must not undo the
	// successful change.
	if err := s.repo.InsertPasswordHistory(ctx, identityID, string(hash), now); err != nil {
		s.logger.Warn("failed to store password history", zap.String("identity_id", identityID), zap.Error(err))
	}

	s.logger.Info("password changed", zap.String("identity_id", identityID))
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(identity *models.Identity, issuedAt time.Time) (string, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		IdentityID: identity.ID,
		Username:   identity.Username,
		Role:       identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
