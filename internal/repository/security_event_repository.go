package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

type SecurityEventRepository interface {
	Create(ctx context.Context, e *domain.SecurityEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, req PageRequest) (PageResult[domain.SecurityEvent], error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, req PageRequest) (PageResult[domain.SecurityEvent], error)
	CountSince(ctx context.Context, eventType domain.SecurityEventType, principal, ipAddress string, since time.Time) (int64, error)
}

type GormSecurityEventRepository struct{ db *gorm.DB }

func NewSecurityEventRepository(db *gorm.DB) SecurityEventRepository {
	return &GormSecurityEventRepository{db: db}
}

func (r *GormSecurityEventRepository) Create(ctx context.Context, e *domain.SecurityEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return record(ctx, "security_event", "create", r.db.WithContext(ctx).Create(e).Error, nil)
}

func (r *GormSecurityEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, req PageRequest) (PageResult[domain.SecurityEvent], error) {
	return r.listPaged(ctx, "list_by_user", req, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

func (r *GormSecurityEventRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, req PageRequest) (PageResult[domain.SecurityEvent], error) {
	return r.listPaged(ctx, "list_by_tenant", req, func(q *gorm.DB) *gorm.DB {
		return q.Where("tenant_id = ?", tenantID)
	})
}

// CountSince counts events of one type for the principal and address pair
// that occurred at or after since.
func (r *GormSecurityEventRepository) CountSince(ctx context.Context, eventType domain.SecurityEventType, principal, ipAddress string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.SecurityEvent{}).
		Where("event_type = ? AND principal = ? AND ip_address = ? AND occurred_at >= ?", eventType, principal, ipAddress, since).
		Count(&n).Error
	if err := record(ctx, "security_event", "count_since", err, nil); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *GormSecurityEventRepository) listPaged(ctx context.Context, op string, req PageRequest, scope func(*gorm.DB) *gorm.DB) (PageResult[domain.SecurityEvent], error) {
	base := scope(r.db.WithContext(ctx).Model(&domain.SecurityEvent{}))
	page, err := findPage[domain.SecurityEvent](base, req, "occurred_at DESC", "id DESC")
	if err := record(ctx, "security_event", op, err, nil); err != nil {
		return PageResult[domain.SecurityEvent]{}, err
	}
	return page, nil
}
