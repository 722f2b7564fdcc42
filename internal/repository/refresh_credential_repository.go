package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

type RefreshCredentialRepository interface {
	Create(ctx context.Context, c *domain.RefreshCredential) error
	FindByTokenHash(ctx context.Context, hash string) (*domain.RefreshCredential, error)
	RevokeByID(ctx context.Context, id uuid.UUID) error
	Rotate(ctx context.Context, oldID, sessionID uuid.UUID, next *domain.RefreshCredential) error
}

type GormRefreshCredentialRepository struct{ db *gorm.DB }

func NewRefreshCredentialRepository(db *gorm.DB) RefreshCredentialRepository {
	return &GormRefreshCredentialRepository{db: db}
}

func (r *GormRefreshCredentialRepository) Create(ctx context.Context, c *domain.RefreshCredential) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return record(ctx, "refresh_credential", "create", r.db.WithContext(ctx).Create(c).Error, nil)
}

func (r *GormRefreshCredentialRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.RefreshCredential, error) {
	var c domain.RefreshCredential
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&c).Error
	if err := record(ctx, "refresh_credential", "find_by_token_hash", err, ErrCredentialNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRefreshCredentialRepository) RevokeByID(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.RefreshCredential{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now().UTC()).Error
	return record(ctx, "refresh_credential", "revoke_by_id", err, nil)
}

// Rotate revokes oldID, stores next and repoints the session at it in one
// transaction. ErrCredentialRevoked means another request already spent
// oldID; ErrSessionNotFound means the session is no longer live or no
// longer paired with oldID. Either way nothing is written.
func (r *GormRefreshCredentialRepository) Rotate(ctx context.Context, oldID, sessionID uuid.UUID, next *domain.RefreshCredential) error {
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&domain.RefreshCredential{}).
			Where("id = ? AND revoked_at IS NULL", oldID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCredentialRevoked
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		res = tx.Model(&domain.Session{}).
			Where("id = ? AND refresh_credential_id = ? AND revoked_at IS NULL AND expires_at > ?", sessionID, oldID, now).
			Updates(map[string]any{"refresh_credential_id": next.ID, "last_activity_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
	if errors.Is(err, ErrCredentialRevoked) {
		observability.RecordRepositoryOperation(ctx, "refresh_credential", "rotate", "conflict")
		return err
	}
	return record(ctx, "refresh_credential", "rotate", err, ErrSessionNotFound)
}
