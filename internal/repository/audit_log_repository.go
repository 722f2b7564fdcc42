package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, req PageRequest) (PageResult[domain.AuditLog], error)
}

type GormAuditLogRepository struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository { return &GormAuditLogRepository{db: db} }

func (r *GormAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return record(ctx, "audit_log", "create", r.db.WithContext(ctx).Create(entry).Error, nil)
}

func (r *GormAuditLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, req PageRequest) (PageResult[domain.AuditLog], error) {
	base := r.db.WithContext(ctx).Model(&domain.AuditLog{}).Where("user_id = ?", userID)
	page, err := findPage[domain.AuditLog](base, req, "timestamp DESC", "id DESC")
	if err := record(ctx, "audit_log", "list_by_user", err, nil); err != nil {
		return PageResult[domain.AuditLog]{}, err
	}
	return page, nil
}
