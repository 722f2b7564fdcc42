package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string     `gorm:"size:320;uniqueIndex;not null" json:"email"`
	DisplayName       string     `gorm:"size:200" json:"display_name"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`
	EmailConfirmed    bool       `gorm:"not null;default:false" json:"email_confirmed"`
	AccessFailedCount int        `gorm:"not null;default:0" json:"-"`
	LockoutEnd        *time.Time `json:"lockout_end,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsLocked reports whether a lockout window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

type Tenant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TenantMembership struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_membership_user_tenant;not null" json:"user_id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_membership_user_tenant;not null" json:"tenant_id"`
	RoleID    *uuid.UUID `gorm:"type:uuid" json:"role_id,omitempty"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	GrantedAt time.Time  `json:"granted_at"`
	Tenant    *Tenant    `json:"tenant,omitempty"`
	Role      *Role      `json:"role,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
