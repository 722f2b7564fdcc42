package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeviceType string

const (
	DeviceTypeMobile  DeviceType = "Mobile"
	DeviceTypeTablet  DeviceType = "Tablet"
	DeviceTypeTV      DeviceType = "TV"
	DeviceTypeDesktop DeviceType = "Desktop"
)

const (
	MinTrustScore = 0
	MaxTrustScore = 100
)

type UserDevice struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_device_user_hash;not null" json:"user_id"`
	DeviceHash      string     `gorm:"size:128;uniqueIndex:idx_device_user_hash;not null" json:"-"`
	DeviceName      string     `gorm:"size:200" json:"device_name"`
	DeviceType      DeviceType `gorm:"size:16" json:"device_type"`
	OperatingSystem string     `gorm:"size:100" json:"operating_system"`
	Browser         string     `gorm:"size:100" json:"browser"`
	LastIPAddress   string     `gorm:"size:64" json:"last_ip_address"`
	GeoLocation     string     `gorm:"size:200" json:"geo_location,omitempty"`
	FirstSeen       time.Time  `json:"first_seen"`
	LastSeen        time.Time  `json:"last_seen"`
	LastTrustBumpAt *time.Time `json:"-"`
	IsTrusted       bool       `gorm:"not null;default:false" json:"is_trusted"`
	TrustScore      int        `gorm:"not null;default:0" json:"trust_score"`
	IsBlocked       bool       `gorm:"not null;default:false" json:"is_blocked"`
	BlockReason     string     `gorm:"size:200" json:"block_reason,omitempty"`
}

// ClampTrustScore bounds a score to the [MinTrustScore, MaxTrustScore] range.
func ClampTrustScore(score int) int {
	if score < MinTrustScore {
		return MinTrustScore
	}
	if score > MaxTrustScore {
		return MaxTrustScore
	}
	return score
}
