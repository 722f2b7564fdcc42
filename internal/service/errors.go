package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("email or password incorrect")
	ErrUserInactive        = errors.New("user account is inactive")
	ErrUserLocked          = errors.New("user account is locked")
	ErrInvalidContext      = errors.New("invalid tenant context")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
	ErrInternal            = errors.New("internal error")
)

// LockedError carries the moment a lockout ends. It matches ErrUserLocked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("user account is locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrUserLocked }

func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrUserInactive):
		return "USER_INACTIVE"
	case errors.Is(err, ErrUserLocked):
		return "USER_LOCKED"
	case errors.Is(err, ErrInvalidContext):
		return "INVALID_CONTEXT"
	case errors.Is(err, ErrDeviceNotFound):
		return "DEVICE_NOT_FOUND"
	case errors.Is(err, ErrDeviceLimitExceeded):
		return "DEVICE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrWeakPassword):
		return "WEAK_PASSWORD"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "INVALID_REFRESH_TOKEN"
	default:
		return "INTERNAL_ERROR"
	}
}
