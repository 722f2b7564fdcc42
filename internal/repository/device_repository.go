package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

type DeviceVisit struct {
	IPAddress       string
	SeenAt          time.Time
	TrustScore      int
	LastTrustBumpAt *time.Time
}

type DeviceRepository interface {
	Create(ctx context.Context, d *domain.UserDevice) error
	FindByUserAndHash(ctx context.Context, userID uuid.UUID, hash string) (*domain.UserDevice, error)
	FindByIDForUser(ctx context.Context, userID, deviceID uuid.UUID) (*domain.UserDevice, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserDevice, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	RecordVisit(ctx context.Context, deviceID uuid.UUID, visit DeviceVisit) error
	Update(ctx context.Context, d *domain.UserDevice) error
}

type GormDeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) DeviceRepository { return &GormDeviceRepository{db: db} }

func (r *GormDeviceRepository) Create(ctx context.Context, d *domain.UserDevice) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return record(ctx, "device", "create", r.db.WithContext(ctx).Create(d).Error, nil)
}

func (r *GormDeviceRepository) FindByUserAndHash(ctx context.Context, userID uuid.UUID, hash string) (*domain.UserDevice, error) {
	var d domain.UserDevice
	err := r.db.WithContext(ctx).Where("user_id = ? AND device_hash = ?", userID, hash).First(&d).Error
	if err := record(ctx, "device", "find_by_user_and_hash", err, ErrDeviceNotFound); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormDeviceRepository) FindByIDForUser(ctx context.Context, userID, deviceID uuid.UUID) (*domain.UserDevice, error) {
	var d domain.UserDevice
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, deviceID).First(&d).Error
	if err := record(ctx, "device", "find_by_id_for_user", err, ErrDeviceNotFound); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormDeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserDevice, error) {
	var devices []domain.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen DESC").
		Find(&devices).Error
	if err := record(ctx, "device", "list_by_user", err, nil); err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *GormDeviceRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.UserDevice{}).
		Where("user_id = ? AND is_blocked = ?", userID, false).
		Count(&n).Error
	if err := record(ctx, "device", "count_active_by_user", err, nil); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *GormDeviceRepository) RecordVisit(ctx context.Context, deviceID uuid.UUID, visit DeviceVisit) error {
	res := r.db.WithContext(ctx).Model(&domain.UserDevice{}).
		Where("id = ?", deviceID).
		Updates(map[string]any{
			"last_seen":          visit.SeenAt,
			"last_ip_address":    visit.IPAddress,
			"trust_score":        domain.ClampTrustScore(visit.TrustScore),
			"last_trust_bump_at": visit.LastTrustBumpAt,
		})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrDeviceNotFound
	}
	return record(ctx, "device", "record_visit", err, ErrDeviceNotFound)
}

func (r *GormDeviceRepository) Update(ctx context.Context, d *domain.UserDevice) error {
	d.TrustScore = domain.ClampTrustScore(d.TrustScore)
	return record(ctx, "device", "update", r.db.WithContext(ctx).Save(d).Error, nil)
}
