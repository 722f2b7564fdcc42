package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

type IssuedRefresh struct {
	Credential *domain.RefreshCredential
	Token      string
}

type TokenService struct {
	issuer      TokenIssuer
	credentials repository.RefreshCredentialRepository
	digester    security.Digester
	policy      config.TokenPolicy
	now         func() time.Time
}

func NewTokenService(issuer TokenIssuer, credentials repository.RefreshCredentialRepository, digester security.Digester, policy config.TokenPolicy) *TokenService {
	if digester == nil {
		digester = security.SHA256Digester{}
	}
	return &TokenService{
		issuer:      issuer,
		credentials: credentials,
		digester:    digester,
		policy:      policy,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IssueRefresh mints an opaque refresh token and stores only its digest.
func (s *TokenService) IssueRefresh(ctx context.Context, userID, tenantID uuid.UUID, deviceID string) (*IssuedRefresh, error) {
	issued, err := s.newRefresh(userID, tenantID, deviceID)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.Create(ctx, issued.Credential); err != nil {
		return nil, fmt.Errorf("store refresh credential: %w", err)
	}
	return issued, nil
}

// Lookup resolves a presented refresh token through its digest.
func (s *TokenService) Lookup(ctx context.Context, raw string) (*domain.RefreshCredential, error) {
	return s.credentials.FindByTokenHash(ctx, security.HashToken(s.digester, raw))
}

// Rotate spends old and returns its successor, now paired with sessionID.
func (s *TokenService) Rotate(ctx context.Context, old *domain.RefreshCredential, sessionID uuid.UUID) (*IssuedRefresh, error) {
	issued, err := s.newRefresh(old.UserID, old.TenantID, old.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.Rotate(ctx, old.ID, sessionID, issued.Credential); err != nil {
		return nil, err
	}
	return issued, nil
}

func (s *TokenService) newRefresh(userID, tenantID uuid.UUID, deviceID string) (*IssuedRefresh, error) {
	raw, err := s.issuer.MintRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	now := s.now()
	return &IssuedRefresh{
		Token: raw,
		Credential: &domain.RefreshCredential{
			ID:        uuid.New(),
			UserID:    userID,
			TenantID:  tenantID,
			DeviceID:  deviceID,
			TokenHash: security.HashToken(s.digester, raw),
			ExpiresAt: now.Add(s.policy.RefreshTTL),
			CreatedAt: now,
		},
	}, nil
}

func (s *TokenService) IssueAccess(userID, tenantID, sessionID uuid.UUID, role string) (string, time.Time, error) {
	return s.issuer.MintAccessToken(security.AccessTokenInput{
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		SessionID: sessionID,
		TTL:       s.policy.AccessTTL,
	})
}

func (s *TokenService) Revoke(ctx context.Context, credentialID uuid.UUID) error {
	return s.credentials.RevokeByID(ctx, credentialID)
}
