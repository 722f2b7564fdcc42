package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockUntil time.Time) (LoginFailureState, error)
	RecordLoginSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err := record(ctx, "user", "find_by_id", err, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err := record(ctx, "user", "find_by_email", err, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = NormalizeEmail(user.Email)
	return record(ctx, "user", "create", r.db.WithContext(ctx).Create(user).Error, nil)
}

// LoginFailureState is the lockout state stored after a failed attempt.
type LoginFailureState struct {
	AccessFailedCount int
	LockoutEnd        *time.Time
}

// RecordLoginFailure increments the failure counter in the database and sets
// lockout_end to lockUntil once the counter reaches maxAttempts. The increment
// and the read back run in one transaction so parallel failures all count.
func (r *GormUserRepository) RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockUntil time.Time) (LoginFailureState, error) {
	var state LoginFailureState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"access_failed_count": gorm.Expr("access_failed_count + 1"),
				"updated_at":          time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		if err := tx.Model(&domain.User{}).
			Select("access_failed_count", "lockout_end").
			Where("id = ?", userID).
			Take(&state).Error; err != nil {
			return err
		}
		if maxAttempts <= 0 || state.AccessFailedCount < maxAttempts {
			return nil
		}
		if err := tx.Model(&domain.User{}).
			Where("id = ?", userID).
			Update("lockout_end", lockUntil).Error; err != nil {
			return err
		}
		state.LockoutEnd = &lockUntil
		return nil
	})
	if err := record(ctx, "user", "record_login_failure", err, ErrUserNotFound); err != nil {
		return LoginFailureState{}, err
	}
	return state, nil
}

// RecordLoginSuccess clears the failure counter and stamps last_login_at
// unless a lockout window opened by a parallel failure is still running, in
// which case it returns ErrUserLockedOut and changes nothing.
func (r *GormUserRepository) RecordLoginSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND (lockout_end IS NULL OR lockout_end <= ?)", userID, at).
		Updates(map[string]any{
			"access_failed_count": 0,
			"lockout_end":         nil,
			"last_login_at":       gorm.Expr("CASE WHEN last_login_at IS NULL OR last_login_at < ? THEN ? ELSE last_login_at END", at, at),
			"updated_at":          time.Now().UTC(),
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		var n int64
		if err = r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).Count(&n).Error; err == nil {
			err = ErrUserNotFound
			if n > 0 {
				err = ErrUserLockedOut
			}
		}
	}
	if errors.Is(err, ErrUserLockedOut) {
		observability.RecordRepositoryOperation(ctx, "user", "record_login_success", "conflict")
		return err
	}
	return record(ctx, "user", "record_login_success", err, ErrUserNotFound)
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_hash":       passwordHash,
			"access_failed_count": 0,
			"lockout_end":         nil,
			"updated_at":          time.Now().UTC(),
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	return record(ctx, "user", "update_password", err, ErrUserNotFound)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
