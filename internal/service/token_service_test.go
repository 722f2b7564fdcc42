package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

type inMemoryCredentialRepo struct {
	byHash   map[string]*domain.RefreshCredential
	revoked  map[uuid.UUID]bool
	pairedTo map[uuid.UUID]uuid.UUID
}

func newInMemoryCredentialRepo() *inMemoryCredentialRepo {
	return &inMemoryCredentialRepo{
		byHash:   map[string]*domain.RefreshCredential{},
		revoked:  map[uuid.UUID]bool{},
		pairedTo: map[uuid.UUID]uuid.UUID{},
	}
}

func (r *inMemoryCredentialRepo) Create(_ context.Context, c *domain.RefreshCredential) error {
	cp := *c
	r.byHash[c.TokenHash] = &cp
	return nil
}

func (r *inMemoryCredentialRepo) FindByTokenHash(_ context.Context, hash string) (*domain.RefreshCredential, error) {
	c, ok := r.byHash[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (r *inMemoryCredentialRepo) RevokeByID(_ context.Context, id uuid.UUID) error {
	r.revoked[id] = true
	return nil
}

func (r *inMemoryCredentialRepo) Rotate(ctx context.Context, oldID, sessionID uuid.UUID, next *domain.RefreshCredential) error {
	if r.revoked[oldID] {
		return repository.ErrCredentialRevoked
	}
	r.revoked[oldID] = true
	r.pairedTo[next.ID] = sessionID
	return r.Create(ctx, next)
}

type failingIssuer struct{}

func (failingIssuer) MintAccessToken(security.AccessTokenInput) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer offline")
}

func (failingIssuer) MintRefreshToken() (string, error) {
	return "", errors.New("entropy exhausted")
}

func TestTokenServiceIssueRefreshStoresDigestOnly(t *testing.T) {
	repo := newInMemoryCredentialRepo()
	policy := config.DefaultSecurityPolicy().Token
	svc := NewTokenService(security.NewJWTManager("iss", "aud", testJWTSecret), repo, nil, policy)
	userID, tenantID := uuid.New(), uuid.New()

	issued, err := svc.IssueRefresh(context.Background(), userID, tenantID, "device-9")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if issued.Token == "" || issued.Credential.TokenHash == issued.Token {
		t.Fatal("expected raw token returned and only the digest stored")
	}
	stored, ok := repo.byHash[security.HashToken(security.SHA256Digester{}, issued.Token)]
	if !ok {
		t.Fatal("expected credential keyed by token digest")
	}
	if stored.UserID != userID || stored.TenantID != tenantID || stored.DeviceID != "device-9" {
		t.Fatalf("unexpected credential: %+v", stored)
	}
	if got := stored.ExpiresAt.Sub(stored.CreatedAt); got != policy.RefreshTTL {
		t.Fatalf("expected refresh ttl %s, got %s", policy.RefreshTTL, got)
	}

	if err := svc.Revoke(context.Background(), stored.ID); err != nil || !repo.revoked[stored.ID] {
		t.Fatalf("expected revoke to reach the repository: %v", err)
	}
}

func TestTokenServiceIssueAccessCarriesContext(t *testing.T) {
	jwtMgr := security.NewJWTManager("iss", "aud", testJWTSecret)
	svc := NewTokenService(jwtMgr, newInMemoryCredentialRepo(), nil, config.DefaultSecurityPolicy().Token)
	userID, tenantID, sessionID := uuid.New(), uuid.New(), uuid.New()

	token, expiresAt, err := svc.IssueAccess(userID, tenantID, sessionID, "Admin")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if d := time.Until(expiresAt); d <= 14*time.Minute || d > 15*time.Minute {
		t.Fatalf("expected ~15m access token, got %s", d)
	}
	claims, err := jwtMgr.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	gotSession, _ := claims.Session()
	gotTenant, _ := claims.Tenant()
	if gotSession != sessionID || gotTenant != tenantID || claims.Role != "Admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenServicePropagatesIssuerFailures(t *testing.T) {
	svc := NewTokenService(failingIssuer{}, newInMemoryCredentialRepo(), nil, config.DefaultSecurityPolicy().Token)
	if _, err := svc.IssueRefresh(context.Background(), uuid.New(), uuid.New(), ""); err == nil {
		t.Fatal("expected refresh mint failure")
	}
	if _, _, err := svc.IssueAccess(uuid.New(), uuid.New(), uuid.New(), "r"); err == nil {
		t.Fatal("expected access mint failure")
	}
}

func TestTokenServiceRotateCarriesIdentityAndSpendsOld(t *testing.T) {
	ctx := context.Background()
	repo := newInMemoryCredentialRepo()
	svc := NewTokenService(security.NewJWTManager("iss", "aud", testJWTSecret), repo, nil, config.DefaultSecurityPolicy().Token)
	first, err := svc.IssueRefresh(ctx, uuid.New(), uuid.New(), "tablet")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	old, err := svc.Lookup(ctx, first.Token)
	if err != nil || old.ID != first.Credential.ID {
		t.Fatalf("lookup by raw token: %v %+v", err, old)
	}

	sessionID := uuid.New()
	next, err := svc.Rotate(ctx, old, sessionID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.Token == first.Token || next.Credential.ID == old.ID {
		t.Fatal("expected a fresh token and credential")
	}
	if next.Credential.UserID != old.UserID || next.Credential.TenantID != old.TenantID || next.Credential.DeviceID != "tablet" {
		t.Fatalf("rotation must keep identity, got %+v", next.Credential)
	}
	if !repo.revoked[old.ID] || repo.pairedTo[next.Credential.ID] != sessionID {
		t.Fatal("expected the old credential spent and the new one paired with the session")
	}
	if _, err := svc.Rotate(ctx, old, sessionID); !errors.Is(err, repository.ErrCredentialRevoked) {
		t.Fatalf("expected a second rotation of the same credential to fail, got %v", err)
	}
}
