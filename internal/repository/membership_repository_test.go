package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

func seedTenant(t *testing.T, db *gorm.DB, code string, active bool) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{ID: uuid.New(), Code: code, Name: code + " inc"}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if !active {
		if err := db.Model(tenant).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate tenant: %v", err)
		}
	}
	return tenant
}

func TestMembershipRepositoryListActiveByUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewMembershipRepository(db)
	userID := uuid.New()
	role := &domain.Role{ID: uuid.New(), Name: "Owner"}
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}

	acme := seedTenant(t, db, "acme", true)
	globex := seedTenant(t, db, "globex", true)
	closed := seedTenant(t, db, "closed", false)
	base := time.Now().UTC().Add(-time.Hour)

	memberships := []struct {
		tenant *domain.Tenant
		active bool
		at     time.Time
	}{
		{globex, true, base.Add(2 * time.Minute)},
		{acme, true, base},
		{closed, true, base.Add(time.Minute)},
	}
	for _, m := range memberships {
		row := &domain.TenantMembership{ID: uuid.New(), UserID: userID, TenantID: m.tenant.ID, RoleID: &role.ID, GrantedAt: m.at}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("create membership: %v", err)
		}
	}
	inactive := seedTenant(t, db, "inactive-member", true)
	row := &domain.TenantMembership{ID: uuid.New(), UserID: userID, TenantID: inactive.ID, RoleID: &role.ID, GrantedAt: base}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create inactive membership: %v", err)
	}
	if err := db.Model(row).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate membership: %v", err)
	}

	got, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 usable memberships, got %d", len(got))
	}
	if got[0].Tenant == nil || got[0].Tenant.Code != "acme" || got[1].Tenant.Code != "globex" {
		t.Fatalf("expected grant order acme, globex; got %+v", got)
	}
	if got[0].Role == nil || got[0].Role.Name != "Owner" {
		t.Fatalf("expected role preloaded, got %+v", got[0].Role)
	}

	if _, err := repo.FindByUserAndTenant(ctx, uuid.New(), acme.ID); !errors.Is(err, ErrMembershipNotFound) {
		t.Fatalf("expected membership not found, got %v", err)
	}
}
