package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
)

const RevokeReasonRefreshRevoked = "refresh_token_revoked"

type RefreshRequest struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// RefreshTokens trades a live refresh token for a new access token and a
// rotated refresh token. The session keeps its id and expiry; the presented
// token is spent and cannot be replayed.
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*ContextTokens, error) {
	ctx, span := observability.StartSpan(ctx, "auth.refresh")
	defer span.End()

	tokens, err := s.refresh(ctx, req)
	observability.RecordTokenRefresh(outcomeStatus(err))
	if err != nil {
		span.RecordError(err)
	}
	return tokens, err
}

func (s *AuthService) refresh(ctx context.Context, req RefreshRequest) (*ContextTokens, error) {
	var userID, tenantID *uuid.UUID
	reject := func(details string, err error) error {
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:    userID,
			TenantID:  tenantID,
			Event:     domain.AuditTokenRefresh,
			Result:    domain.AuditFailed,
			Details:   details,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		if userID != nil {
			s.audit.LogEvent(ctx, SecurityEventInput{
				UserID:    userID.String(),
				TenantID:  tenantID,
				EventType: domain.EventTokenRefreshFailed,
				IPAddress: req.IPAddress,
				UserAgent: req.UserAgent,
				Details:   details,
			})
		}
		s.logger.WarnContext(ctx, "token refresh rejected", "reason", details)
		return err
	}

	if strings.TrimSpace(req.RefreshToken) == "" {
		return nil, reject("missing refresh token", ErrInvalidRefreshToken)
	}
	credential, err := s.tokens.Lookup(ctx, req.RefreshToken)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, reject("unknown refresh token", ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, reject("internal error", s.internal(ctx, "find refresh credential", err))
	}
	userID, tenantID = &credential.UserID, &credential.TenantID
	now := s.now()
	if credential.RevokedAt != nil {
		return nil, reject("refresh token already used or revoked", ErrInvalidRefreshToken)
	}
	if !credential.IsLive(now) {
		return nil, reject("refresh token expired", ErrInvalidRefreshToken)
	}

	session, err := s.sessions.FindByRefreshCredential(ctx, credential.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, reject("no session for refresh token", ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, reject("internal error", s.internal(ctx, "find session", err))
	}
	if session.IsRevoked() || session.IsExpired(now) {
		return nil, reject("session no longer active", ErrInvalidRefreshToken)
	}

	user, err := s.users.FindByID(ctx, credential.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, reject("user not found", ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, reject("internal error", s.internal(ctx, "find user", err))
	}
	if !user.IsActive {
		return nil, reject("user inactive", ErrUserInactive)
	}
	membership, err := s.memberships.FindByUserAndTenant(ctx, credential.UserID, credential.TenantID)
	if err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		return nil, reject("internal error", s.internal(ctx, "find membership", err))
	}
	if membership == nil || !membership.IsActive || membership.Tenant == nil || !membership.Tenant.IsActive || membership.Role == nil {
		return nil, reject("tenant membership no longer valid", ErrInvalidContext)
	}

	next, err := s.tokens.Rotate(ctx, credential, session.ID)
	switch {
	case errors.Is(err, repository.ErrCredentialRevoked):
		return nil, reject("refresh token already used or revoked", ErrInvalidRefreshToken)
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, reject("session no longer active", ErrInvalidRefreshToken)
	case err != nil:
		return nil, reject("internal error", s.internal(ctx, "rotate refresh credential", err))
	}
	access, accessExpiresAt, err := s.tokens.IssueAccess(credential.UserID, credential.TenantID, session.ID, membership.Role.Name)
	if err != nil {
		return nil, reject("internal error", s.internal(ctx, "mint access token", err))
	}

	s.audit.RecordAuditLog(ctx, AuditLogInput{
		UserID:    userID,
		TenantID:  tenantID,
		Event:     domain.AuditTokenRefresh,
		Result:    domain.AuditSuccess,
		Details:   "access token refreshed; refresh token rotated",
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	s.audit.LogEvent(ctx, SecurityEventInput{
		UserID:    credential.UserID.String(),
		TenantID:  tenantID,
		EventType: domain.EventTokenRefreshed,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		DeviceID:  credential.DeviceID,
		Success:   true,
		Details:   "Access token refreshed",
	})
	s.logger.InfoContext(ctx, "token refreshed",
		"user_id", credential.UserID.String(),
		"session_id", session.ID.String(),
	)

	return &ContextTokens{
		UserID:               s.ids.ToPublicID("user", credential.UserID),
		TenantID:             s.ids.ToPublicID("tenant", credential.TenantID),
		TenantCode:           membership.Tenant.Code,
		TenantName:           membership.Tenant.Name,
		RoleName:             membership.Role.Name,
		SessionID:            s.ids.ToPublicID("session", session.ID),
		AccessToken:          access,
		AccessTokenExpiresAt: accessExpiresAt,
		RefreshToken:         next.Token,
		ExpiresAt:            session.ExpiresAt,
	}, nil
}

// RevokeRefreshToken ends the login a refresh token belongs to. Only the
// owner may revoke it; revoking a spent token is a no-op.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, userID uuid.UUID, raw string) error {
	ctx, span := observability.StartSpan(ctx, "auth.revoke_refresh")
	defer span.End()

	auditRevoke := func(result domain.AuditResult, details string) {
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:  &userID,
			Event:   domain.AuditTokenRevoke,
			Result:  result,
			Details: details,
		})
	}

	credential, err := s.tokens.Lookup(ctx, raw)
	if errors.Is(err, repository.ErrCredentialNotFound) || (err == nil && credential.UserID != userID) {
		auditRevoke(domain.AuditFailed, "refresh token not found")
		return ErrInvalidRefreshToken
	}
	if err != nil {
		auditRevoke(domain.AuditFailed, "internal error")
		return s.internal(ctx, "find refresh credential", err)
	}
	if credential.RevokedAt != nil {
		auditRevoke(domain.AuditSuccess, "refresh token already revoked")
		return nil
	}

	session, err := s.sessions.FindByRefreshCredential(ctx, credential.ID)
	switch {
	case err == nil && !session.IsRevoked():
		_, err = s.sessions.RevokeSession(ctx, session.ID, RevokeReasonRefreshRevoked)
	case err == nil, errors.Is(err, ErrSessionNotFound):
		err = s.tokens.Revoke(ctx, credential.ID)
	}
	if err != nil {
		auditRevoke(domain.AuditFailed, "internal error")
		return s.internal(ctx, "revoke refresh credential", err)
	}

	auditRevoke(domain.AuditSuccess, "refresh token revoked")
	s.audit.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		TenantID:  &credential.TenantID,
		EventType: domain.EventRefreshTokenRevoked,
		DeviceID:  credential.DeviceID,
		Success:   true,
		Details:   "Refresh token revoked by owner",
	})
	return nil
}
