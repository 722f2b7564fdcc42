package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const (
	RevokeReasonUser      = "user_session_revoked"
	RevokeReasonOthers    = "user_revoke_others"
	RevokeReasonLogout    = "logout"
	RevokeReasonLogoutAll = "logout_all"
	RevokeReasonLimit     = "session_limit"
	RevokeReasonExpired   = "expired"
	RevokeReasonPassword  = "password_changed"
)

type CreateSessionParams struct {
	UserID              uuid.UUID
	TenantID            uuid.UUID
	Type                domain.SessionType
	IPAddress           string
	UserAgent           string
	DeviceID            string
	RefreshCredentialID *uuid.UUID
}

type SessionView struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenant_id"`
	SessionType    domain.SessionType `json:"session_type"`
	CreatedAt      time.Time          `json:"created_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
	RevokedAt      *time.Time         `json:"revoked_at,omitempty"`
	UserAgent      string             `json:"user_agent"`
	IP             string             `json:"ip"`
	IsCurrent      bool               `json:"is_current"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	audit       *SecurityAuditService
	locker      UserLocker
	ids         security.PublicIDCodec
	policy      config.SessionPolicy
	logger      *slog.Logger
	now         func() time.Time
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	audit *SecurityAuditService,
	locker UserLocker,
	ids security.PublicIDCodec,
	policy config.SessionPolicy,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewNoopUserLocker()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		audit:       audit,
		locker:      locker,
		ids:         ids,
		policy:      policy,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession enforces the concurrent-session cap and inserts the new
// session while holding the user's session lock.
func (s *SessionService) CreateSession(ctx context.Context, p CreateSessionParams) (*domain.Session, error) {
	unlock, err := s.locker.Lock(ctx, lockScopeSession, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock sessions: %w", err)
	}
	defer unlock()

	if _, err := s.EnforceSessionLimit(ctx, p.UserID, s.policy.MaxConcurrent); err != nil {
		return nil, err
	}
	sessionType := p.Type
	if sessionType != domain.SessionTypeExtended && sessionType != domain.SessionTypeAdmin {
		sessionType = domain.SessionTypeNormal
	}
	now := s.now()
	session := &domain.Session{
		ID:                  uuid.New(),
		UserID:              p.UserID,
		TenantID:            p.TenantID,
		SessionToken:        security.NewSessionToken(),
		RefreshCredentialID: p.RefreshCredentialID,
		SessionType:         sessionType,
		DeviceID:            p.DeviceID,
		IPAddress:           p.IPAddress,
		UserAgent:           p.UserAgent,
		CreatedAt:           now,
		LastActivityAt:      now,
		ExpiresAt:           now.Add(s.lifetime(sessionType)),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.audit != nil {
		s.audit.LogSessionCreated(ctx, session)
	}
	s.logger.InfoContext(ctx, "session created",
		"user_id", p.UserID.String(),
		"session_id", session.ID.String(),
		"session_type", string(sessionType),
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

func (s *SessionService) lifetime(t domain.SessionType) time.Duration {
	switch t {
	case domain.SessionTypeExtended:
		return s.policy.ExtendedTTL
	case domain.SessionTypeAdmin:
		return s.policy.AdminTTL
	default:
		return s.policy.NormalTTL
	}
}

// EnforceSessionLimit revokes the least recently active live sessions until
// fewer than maxSessions remain, leaving room for one more.
func (s *SessionService) EnforceSessionLimit(ctx context.Context, userID uuid.UUID, maxSessions int) (int, error) {
	if maxSessions <= 0 {
		return 0, nil
	}
	live, err := s.sessionRepo.ListLiveByActivity(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("list live sessions: %w", err)
	}
	if len(live) < maxSessions {
		return 0, nil
	}
	excess := len(live) - maxSessions + 1
	ids := make([]uuid.UUID, 0, excess)
	for _, session := range live[:excess] {
		ids = append(ids, session.ID)
	}
	n, err := s.sessionRepo.RevokeByIDs(ctx, ids, RevokeReasonLimit)
	if err != nil {
		return 0, fmt.Errorf("revoke oldest sessions: %w", err)
	}
	if n > 0 {
		if s.audit != nil {
			s.audit.LogSessionTerminated(ctx, userID, nil, fmt.Sprintf("%d session(s) revoked: concurrent session limit %d", n, maxSessions))
		}
		s.logger.InfoContext(ctx, "session limit enforced", "user_id", userID.String(), "revoked", n)
	}
	return int(n), nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (s *SessionService) FindByRefreshCredential(ctx context.Context, credentialID uuid.UUID) (*domain.Session, error) {
	session, err := s.sessionRepo.FindByRefreshCredentialID(ctx, credentialID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (s *SessionService) ListActiveSessions(ctx context.Context, userID, currentSessionID uuid.UUID) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:             s.ids.ToPublicID("session", session.ID),
			TenantID:       s.ids.ToPublicID("tenant", session.TenantID),
			SessionType:    session.SessionType,
			CreatedAt:      session.CreatedAt,
			LastActivityAt: session.LastActivityAt,
			ExpiresAt:      session.ExpiresAt,
			RevokedAt:      session.RevokedAt,
			UserAgent:      session.UserAgent,
			IP:             session.IPAddress,
			IsCurrent:      session.ID == currentSessionID,
		})
	}
	return views, nil
}

// RevokeSession is idempotent: an unknown or already revoked session is a
// no-op reported as false.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) (bool, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if session.IsRevoked() {
		return false, nil
	}
	changed, err := s.sessionRepo.RevokeByID(ctx, sessionID, reason)
	if err != nil || !changed {
		return false, err
	}
	s.afterRevoke(ctx, session.UserID, &session.TenantID, fmt.Sprintf("Session %s revoked: %s", sessionID, reason), 1)
	return true, nil
}

func (s *SessionService) RevokeSessionForUser(ctx context.Context, userID, sessionID uuid.UUID, reason string) (string, error) {
	changed, err := s.sessionRepo.RevokeByIDForUser(ctx, userID, sessionID, reason)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	if !changed {
		return "already_revoked", nil
	}
	s.afterRevoke(ctx, userID, nil, fmt.Sprintf("Session %s revoked: %s", sessionID, reason), 1)
	return "revoked", nil
}

func (s *SessionService) RevokeOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) (int64, error) {
	n, err := s.sessionRepo.RevokeOthersByUser(ctx, userID, currentSessionID, RevokeReasonOthers)
	if err != nil {
		return 0, err
	}
	s.afterRevoke(ctx, userID, nil, fmt.Sprintf("%d other session(s) revoked", n), n)
	return n, nil
}

func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	n, err := s.sessionRepo.RevokeByUserID(ctx, userID, reason)
	if err != nil {
		return 0, err
	}
	s.afterRevoke(ctx, userID, nil, fmt.Sprintf("All sessions revoked (%d): %s", n, reason), n)
	return n, nil
}

func (s *SessionService) afterRevoke(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID, details string, n int64) {
	if n == 0 {
		return
	}
	if s.audit != nil {
		s.audit.LogSessionTerminated(ctx, userID, tenantID, details)
	}
	s.logger.InfoContext(ctx, "sessions revoked", "user_id", userID.String(), "count", n, "details", details)
}

// UpdateActivity stamps the session as active now. Revoked or unknown
// sessions are left untouched.
func (s *SessionService) UpdateActivity(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.sessionRepo.TouchActivity(ctx, sessionID, s.now())
	return err
}

func (s *SessionService) IsInactive(ctx context.Context, sessionID uuid.UUID, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return false, nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.LastActivityAt.Before(s.now().Add(-timeout)), nil
}

// CleanupExpired revokes every expired session that is still unrevoked.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.RevokeExpired(ctx, s.now(), RevokeReasonExpired)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	s.logger.InfoContext(ctx, "expired sessions cleaned up", "count", n)
	return n, nil
}
