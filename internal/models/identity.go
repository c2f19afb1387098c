package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role enumerates the RBAC roles known to the platform.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// IdentityStatus enumerates account lifecycle states.
type IdentityStatus string

const (
	IdentityActive   IdentityStatus = "ACTIVE"
	IdentityInactive IdentityStatus = "INACTIVE"
	IdentityLocked   IdentityStatus = "LOCKED"
)

// Identity is a login record in the credential store. failed_attempts and
// status together carry the lockout invariant: status flips to LOCKED in the
// same update that pushes the counter to the limit.
type Identity struct {
	ID             string         `db:"id" json:"id"`
	Username       string         `db:"username" json:"username"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	Role           Role           `db:"role" json:"role"`
	Status         IdentityStatus `db:"status" json:"status"`
	FailedAttempts int            `db:"failed_attempts" json:"-"`
	LastLogin      *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// PasswordHistory is an append-only audit row written on every hash change.
type PasswordHistory struct {
	ID           string    `db:"id" json:"id"`
	IdentityID   string    `db:"identity_id" json:"identity_id"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// JWTClaims are the access-token claims issued on login.
type JWTClaims struct {
	IdentityID string `json:"identity_id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	IssuedAt    time.Time    `json:"issued_at"`
	Identity    IdentityInfo `json:"identity"`
}

// IdentityInfo is the public projection of an Identity.
type IdentityInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// ChangePasswordRequest carries a self-service password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,strongpw"`
}

// ResetPasswordRequest carries an admin-initiated reset.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,strongpw"`
}

// IdentityFilter captures criteria for listing identities.
type IdentityFilter struct {
	Role      *Role
	Status    *IdentityStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
