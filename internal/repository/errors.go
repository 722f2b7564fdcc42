package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/tenant-session-core/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrCredentialNotFound = errors.New("refresh credential not found")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrUserLockedOut      = errors.New("user lockout window is open")
	ErrCredentialRevoked  = errors.New("refresh credential already revoked")
)

// record maps a gorm outcome onto the repository operation counter and
// translates record-not-found into the supplied sentinel.
func record(ctx context.Context, repo, op string, err error, notFound error) error {
	if err == nil {
		observability.RecordRepositoryOperation(ctx, repo, op, "success")
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || (notFound != nil && errors.Is(err, notFound)) {
		observability.RecordRepositoryOperation(ctx, repo, op, "not_found")
		if notFound != nil {
			return notFound
		}
		return err
	}
	observability.RecordRepositoryOperation(ctx, repo, op, "error")
	return err
}
