package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

type CredentialHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type TokenIssuer interface {
	MintAccessToken(in security.AccessTokenInput) (string, time.Time, error)
	MintRefreshToken() (string, error)
}

type AuthServiceInterface interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	SelectContext(ctx context.Context, req SelectContextRequest) (*ContextTokens, error)
	RefreshTokens(ctx context.Context, req RefreshRequest) (*ContextTokens, error)
	RevokeRefreshToken(ctx context.Context, userID uuid.UUID, raw string) error
	Logout(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) error
	ValidateCredentials(ctx context.Context, email, password string) (bool, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	GetUserInfo(ctx context.Context, userID uuid.UUID) (*UserInfo, error)
}

type SessionServiceInterface interface {
	ListActiveSessions(ctx context.Context, userID, currentSessionID uuid.UUID) ([]SessionView, error)
	RevokeSessionForUser(ctx context.Context, userID, sessionID uuid.UUID, reason string) (string, error)
	RevokeOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) (int64, error)
	UpdateActivity(ctx context.Context, sessionID uuid.UUID) error
	IsInactive(ctx context.Context, sessionID uuid.UUID, timeout time.Duration) (bool, error)
}

type DeviceServiceInterface interface {
	ListDevices(ctx context.Context, userID uuid.UUID) ([]DeviceView, error)
	TrustDevice(ctx context.Context, userID, deviceID uuid.UUID) error
	BlockDevice(ctx context.Context, userID, deviceID uuid.UUID) error
	RemoveDevice(ctx context.Context, userID, deviceID uuid.UUID) error
}

type SecurityAuditReader interface {
	GetUserEvents(ctx context.Context, publicUserID string, req repository.PageRequest) (repository.PageResult[SecurityEventView], error)
	GetTenantEvents(ctx context.Context, tenantID uuid.UUID, req repository.PageRequest) (repository.PageResult[SecurityEventView], error)
}

// AsyncRunner schedules best-effort work after the primary write.
type AsyncRunner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

var _ AsyncRunner = (*notify.Dispatcher)(nil)
