package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionType string

const (
	SessionTypeNormal   SessionType = "normal"
	SessionTypeExtended SessionType = "extended"
	SessionTypeAdmin    SessionType = "admin"
)

type Session struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID   `gorm:"type:uuid;index;not null" json:"user_id"`
	TenantID            uuid.UUID   `gorm:"type:uuid;index;not null" json:"tenant_id"`
	SessionToken        string      `gorm:"size:64;uniqueIndex;not null" json:"-"`
	RefreshCredentialID *uuid.UUID  `gorm:"type:uuid;index" json:"-"`
	SessionType         SessionType `gorm:"size:16;not null" json:"session_type"`
	DeviceID            string      `gorm:"size:128" json:"device_id"`
	IPAddress           string      `gorm:"size:64" json:"ip_address"`
	UserAgent           string      `gorm:"size:512" json:"user_agent"`
	CreatedAt           time.Time   `json:"created_at"`
	LastActivityAt      time.Time   `gorm:"index;not null" json:"last_activity_at"`
	ExpiresAt           time.Time   `gorm:"index;not null" json:"expires_at"`
	RevokedAt           *time.Time  `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason       *string     `gorm:"size:64" json:"revoked_reason,omitempty"`
}

func (s *Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

func (s *Session) IsRevoked() bool { return s.RevokedAt != nil }

// IsLive reports a session that is neither revoked nor past its expiry.
func (s *Session) IsLive(now time.Time) bool { return !s.IsRevoked() && !s.IsExpired(now) }

type RefreshCredential struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"tenant_id"`
	DeviceID  string     `gorm:"size:128" json:"device_id"`
	TokenHash string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *RefreshCredential) IsLive(now time.Time) bool {
	return c.RevokedAt == nil && now.Before(c.ExpiresAt)
}
