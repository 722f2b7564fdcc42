package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	FindByIDForUser(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Session, error)
	FindByRefreshCredentialID(ctx context.Context, credentialID uuid.UUID) (*domain.Session, error)
	ListActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error)
	ListLiveByActivity(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error)
	TouchActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)
	RevokeByID(ctx context.Context, sessionID uuid.UUID, reason string) (bool, error)
	RevokeByIDForUser(ctx context.Context, userID, sessionID uuid.UUID, reason string) (bool, error)
	RevokeByIDs(ctx context.Context, sessionIDs []uuid.UUID, reason string) (int64, error)
	RevokeOthersByUser(ctx context.Context, userID, keepSessionID uuid.UUID, reason string) (int64, error)
	RevokeByUserID(ctx context.Context, userID uuid.UUID, reason string) (int64, error)
	RevokeExpired(ctx context.Context, now time.Time, reason string) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return record(ctx, "session", "create", r.db.WithContext(ctx).Create(s).Error, nil)
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err := record(ctx, "session", "find_by_id", err, ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) FindByIDForUser(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, sessionID).First(&s).Error
	if err := record(ctx, "session", "find_by_id_for_user", err, ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) FindByRefreshCredentialID(ctx context.Context, credentialID uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("refresh_credential_id = ?", credentialID).First(&s).Error
	if err := record(ctx, "session", "find_by_refresh_credential", err, ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err := record(ctx, "session", "list_active_by_user_id", err, nil); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListLiveByActivity returns live sessions, least recently active first.
func (r *GormSessionRepository) ListLiveByActivity(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("last_activity_at ASC").
		Order("created_at ASC").
		Find(&sessions).Error
	if err := record(ctx, "session", "list_live_by_activity", err, nil); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *GormSessionRepository) TouchActivity(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL AND last_activity_at < ?", sessionID, at).
		Update("last_activity_at", at)
	if err := record(ctx, "session", "touch_activity", res.Error, nil); err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) RevokeByID(ctx context.Context, sessionID uuid.UUID, reason string) (bool, error) {
	n, err := r.revokeWhere(ctx, "revoke_by_id", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", sessionID)
	})
	return n > 0, err
}

// RevokeByIDForUser returns ErrSessionNotFound when the session is not owned
// by the user and changed=false when it was already revoked.
func (r *GormSessionRepository) RevokeByIDForUser(ctx context.Context, userID, sessionID uuid.UUID, reason string) (bool, error) {
	if _, err := r.FindByIDForUser(ctx, userID, sessionID); err != nil {
		return false, err
	}
	n, err := r.revokeWhere(ctx, "revoke_by_id_for_user", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND id = ?", userID, sessionID)
	})
	return n > 0, err
}

func (r *GormSessionRepository) RevokeByIDs(ctx context.Context, sessionIDs []uuid.UUID, reason string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	return r.revokeWhere(ctx, "revoke_by_ids", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("id IN ?", sessionIDs)
	})
}

func (r *GormSessionRepository) RevokeOthersByUser(ctx context.Context, userID, keepSessionID uuid.UUID, reason string) (int64, error) {
	return r.revokeWhere(ctx, "revoke_others_by_user", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND id <> ?", userID, keepSessionID)
	})
}

func (r *GormSessionRepository) RevokeByUserID(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	return r.revokeWhere(ctx, "revoke_by_user_id", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

// RevokeExpired marks sessions past their expiry as revoked. Rows are kept for
// the audit trail.
func (r *GormSessionRepository) RevokeExpired(ctx context.Context, now time.Time, reason string) (int64, error) {
	return r.revokeWhere(ctx, "revoke_expired", reason, func(q *gorm.DB) *gorm.DB {
		return q.Where("expires_at <= ?", now)
	})
}

// revokeWhere revokes unrevoked sessions matching scope together with their
// refresh credentials in one transaction.
func (r *GormSessionRepository) revokeWhere(ctx context.Context, op, reason string, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var targets []domain.Session
		if err := scope(tx.Model(&domain.Session{})).
			Where("revoked_at IS NULL").
			Select("id", "refresh_credential_id").
			Find(&targets).Error; err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(targets))
		credentialIDs := make([]uuid.UUID, 0, len(targets))
		for _, s := range targets {
			ids = append(ids, s.ID)
			if s.RefreshCredentialID != nil {
				credentialIDs = append(credentialIDs, *s.RefreshCredentialID)
			}
		}
		now := time.Now().UTC()
		res := tx.Model(&domain.Session{}).
			Where("id IN ? AND revoked_at IS NULL", ids).
			Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if len(credentialIDs) == 0 {
			return nil
		}
		return tx.Model(&domain.RefreshCredential{}).
			Where("id IN ? AND revoked_at IS NULL", credentialIDs).
			Update("revoked_at", now).Error
	})
	if err := record(ctx, "session", op, err, nil); err != nil {
		return 0, err
	}
	observability.RecordSessionRevocations(ctx, reason, affected)
	return affected, nil
}
