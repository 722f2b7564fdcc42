package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityEventType string

const (
	EventLoginSuccess           SecurityEventType = "LoginSuccess"
	EventLoginFailed            SecurityEventType = "LoginFailed"
	EventPasswordChanged        SecurityEventType = "PasswordChanged"
	EventNewDeviceDetected      SecurityEventType = "NewDeviceDetected"
	EventSessionCreated         SecurityEventType = "SessionCreated"
	EventSessionRevoked         SecurityEventType = "SessionRevoked"
	EventPermissionGranted      SecurityEventType = "PermissionGranted"
	EventSuspiciousActivity     SecurityEventType = "SuspiciousActivity"
	EventContextSelected        SecurityEventType = "ContextSelected"
	EventContextSelectionFailed SecurityEventType = "ContextSelectionFailed"
	EventLogout                 SecurityEventType = "Logout"
	EventLogoutAll              SecurityEventType = "LogoutAll"
	EventTokenRefreshed         SecurityEventType = "TokenRefreshed"
	EventTokenRefreshFailed     SecurityEventType = "TokenRefreshFailed"
	EventRefreshTokenRevoked    SecurityEventType = "RefreshTokenRevoked"
)

var knownSecurityEventTypes = map[SecurityEventType]struct{}{
	EventLoginSuccess:           {},
	EventLoginFailed:            {},
	EventPasswordChanged:        {},
	EventNewDeviceDetected:      {},
	EventSessionCreated:         {},
	EventSessionRevoked:         {},
	EventPermissionGranted:      {},
	EventSuspiciousActivity:     {},
	EventContextSelected:        {},
	EventContextSelectionFailed: {},
	EventLogout:                 {},
	EventLogoutAll:              {},
	EventTokenRefreshed:         {},
	EventTokenRefreshFailed:     {},
	EventRefreshTokenRevoked:    {},
}

func (t SecurityEventType) Valid() bool {
	_, ok := knownSecurityEventTypes[t]
	return ok
}

type SecurityEvent struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TenantID         *uuid.UUID        `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	AnonymizedUserID *string           `gorm:"size:32;index" json:"anonymized_user_id,omitempty"`
	EventType        SecurityEventType `gorm:"size:40;index;not null" json:"event_type"`
	Principal        string            `gorm:"size:320;index" json:"-"`
	IPAddress        string            `gorm:"size:64;index" json:"ip_address"`
	UserAgent        string            `gorm:"size:512" json:"user_agent"`
	DeviceID         string            `gorm:"size:128" json:"device_id,omitempty"`
	Success          bool              `gorm:"not null" json:"success"`
	Details          string            `gorm:"type:text" json:"details,omitempty"`
	GeoLocation      datatypes.JSON    `json:"geo_location"`
	RiskScore        int               `gorm:"not null;default:0" json:"risk_score"`
	OccurredAt       time.Time         `gorm:"index;not null" json:"occurred_at"`
}

type AuditEvent string

const (
	AuditLogin          AuditEvent = "login"
	AuditLogout         AuditEvent = "logout"
	AuditSelectContext  AuditEvent = "select_context"
	AuditPasswordChange AuditEvent = "password_change"
	AuditTokenRefresh   AuditEvent = "token_refresh"
	AuditTokenRevoke    AuditEvent = "token_revoke"
)

type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailed  AuditResult = "failed"
)

type AuditLog struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID  `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TenantID  *uuid.UUID  `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Event     AuditEvent  `gorm:"size:32;index;not null" json:"event"`
	Result    AuditResult `gorm:"size:16;not null" json:"result"`
	Details   string      `gorm:"type:text" json:"details,omitempty"`
	IPAddress string      `gorm:"size:64" json:"ip_address"`
	UserAgent string      `gorm:"size:512" json:"user_agent"`
	Timestamp time.Time   `gorm:"index;not null" json:"timestamp"`
}

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&User{},
		&Tenant{},
		&Role{},
		&TenantMembership{},
		&RefreshCredential{},
		&Session{},
		&UserDevice{},
		&SecurityEvent{},
		&AuditLog{},
	}
}
