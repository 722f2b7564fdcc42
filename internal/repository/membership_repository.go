package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

// MembershipRepository is read-only: memberships are provisioned elsewhere.
type MembershipRepository interface {
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.TenantMembership, error)
	FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*domain.TenantMembership, error)
}

type GormMembershipRepository struct{ db *gorm.DB }

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &GormMembershipRepository{db: db}
}

// ListActiveByUser returns active memberships whose tenant is active, in
// grant order.
func (r *GormMembershipRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.TenantMembership, error) {
	var memberships []domain.TenantMembership
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Preload("Role").
		Joins("JOIN tenants ON tenants.id = tenant_memberships.tenant_id").
		Where("tenant_memberships.user_id = ? AND tenant_memberships.is_active = ? AND tenants.is_active = ?", userID, true, true).
		Order("tenant_memberships.granted_at ASC").
		Order("tenant_memberships.id ASC").
		Find(&memberships).Error
	if err := record(ctx, "membership", "list_active_by_user", err, nil); err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *GormMembershipRepository) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (*domain.TenantMembership, error) {
	var m domain.TenantMembership
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Preload("Role").
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&m).Error
	if err := record(ctx, "membership", "find_by_user_and_tenant", err, ErrMembershipNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}
