package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const (
	minPasswordLength       = 8
	passwordChangedTemplate = "password-changed"
	passwordChangedSubject  = "Your Password Was Changed"
)

type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
	DeviceID  string
	Geo       *GeoLocation
}

type TenantContext struct {
	TenantID     string `json:"tenant_id"`
	TenantCode   string `json:"tenant_code"`
	TenantName   string `json:"tenant_name"`
	MembershipID string `json:"membership_id"`
	RoleName     string `json:"role_name"`
}

type LoginResult struct {
	UserID                   string          `json:"user_id"`
	Email                    string          `json:"email"`
	DisplayName              string          `json:"display_name"`
	RequiresContextSelection bool            `json:"requires_context_selection"`
	AvailableContexts        []TenantContext `json:"available_contexts"`
	Tokens                   *ContextTokens  `json:"tokens,omitempty"`
}

type SelectContextRequest struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	DeviceID  string
	IPAddress string
	UserAgent string
}

type ContextTokens struct {
	UserID               string    `json:"user_id"`
	TenantID             string    `json:"tenant_id"`
	TenantCode           string    `json:"tenant_code"`
	TenantName           string    `json:"tenant_name"`
	RoleName             string    `json:"role_name"`
	SessionID            string    `json:"session_id"`
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	RefreshToken         string    `json:"refresh_token"`
	ExpiresAt            time.Time `json:"expires_at"`
}

type ChangePasswordRequest struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
	KeepSessionID   *uuid.UUID
	IPAddress       string
	UserAgent       string
}

type UserInfo struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	EmailConfirmed bool       `json:"email_confirmed"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type userLoggedInEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	OccurredAt time.Time `json:"occurred_at"`
}

type contextSelectedEvent struct {
	UserID     string    `json:"user_id"`
	TenantID   string    `json:"tenant_id"`
	RoleID     string    `json:"role_id"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AuthService struct {
	users       repository.UserRepository
	memberships repository.MembershipRepository
	hasher      CredentialHasher
	tokens      *TokenService
	sessions    *SessionService
	devices     *DeviceService
	audit       *SecurityAuditService
	publisher   notify.Publisher
	email       notify.EmailSender
	async       AsyncRunner
	ids         security.PublicIDCodec
	policy      config.LockoutPolicy
	logger      *slog.Logger
	now         func() time.Time
}

type AuthDeps struct {
	Users       repository.UserRepository
	Memberships repository.MembershipRepository
	Hasher      CredentialHasher
	Tokens      *TokenService
	Sessions    *SessionService
	Devices     *DeviceService
	Audit       *SecurityAuditService
	Publisher   notify.Publisher
	Email       notify.EmailSender
	Async       AsyncRunner
	IDs         security.PublicIDCodec
}

func NewAuthService(deps AuthDeps, policy config.LockoutPolicy, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       deps.Users,
		memberships: deps.Memberships,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		sessions:    deps.Sessions,
		devices:     deps.Devices,
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		email:       deps.Email,
		async:       deps.Async,
		ids:         deps.IDs,
		policy:      policy,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.login")
	defer span.End()

	result, err := s.login(ctx, req)
	observability.RecordAuthLogin(outcomeStatus(err))
	if err != nil {
		span.RecordError(err)
	}
	return result, err
}

func (s *AuthService) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := repository.NormalizeEmail(req.Email)
	auditLogin := func(userID *uuid.UUID, result domain.AuditResult, details string) {
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:    userID,
			Event:     domain.AuditLogin,
			Result:    result,
			Details:   details,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.logger.WarnContext(ctx, "login failed", "reason", "user_not_found")
		auditLogin(nil, domain.AuditFailed, "user not found")
		s.audit.LogAuthenticationFailure(ctx, nil, email, req.IPAddress, req.UserAgent, "User not found", req.Geo)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		auditLogin(nil, domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "find user", err)
	}
	userID := user.ID
	now := s.now()

	if !user.IsActive {
		s.logger.WarnContext(ctx, "login failed", "reason", "user_inactive", "user_id", userID.String())
		auditLogin(&userID, domain.AuditFailed, "user inactive")
		s.audit.LogAuthenticationFailure(ctx, &userID, email, req.IPAddress, req.UserAgent, "User inactive", req.Geo)
		return nil, ErrUserInactive
	}
	if user.IsLocked(now) {
		until := user.LockoutEnd.UTC()
		details := fmt.Sprintf("User locked until %s", until.Format("2006-01-02 15:04:05 UTC"))
		s.logger.WarnContext(ctx, "login failed", "reason", "user_locked", "user_id", userID.String())
		auditLogin(&userID, domain.AuditFailed, details)
		s.audit.LogAuthenticationFailure(ctx, &userID, email, req.IPAddress, req.UserAgent, details, req.Geo)
		return nil, &LockedError{Until: until}
	}

	if user.PasswordHash == "" || !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, s.recordPasswordFailure(ctx, user, req, now, auditLogin)
	}

	if err := s.users.RecordLoginSuccess(ctx, userID, now); err != nil {
		if errors.Is(err, repository.ErrUserLockedOut) {
			return nil, s.lockedAfterRace(ctx, user, req, now, auditLogin)
		}
		auditLogin(&userID, domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "reset login state", err)
	}

	if _, err := s.devices.RegisterOrUpdate(ctx, userID, s.devices.Fingerprint(req.DeviceID, req.UserAgent, req.IPAddress), req.UserAgent, req.IPAddress); err != nil {
		if errors.Is(err, ErrDeviceLimitExceeded) {
			auditLogin(&userID, domain.AuditFailed, "device limit exceeded")
			return nil, ErrDeviceLimitExceeded
		}
		auditLogin(&userID, domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "register device", err)
	}

	memberships, err := s.memberships.ListActiveByUser(ctx, userID)
	if err != nil {
		auditLogin(&userID, domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "list memberships", err)
	}
	contexts := make([]TenantContext, 0, len(memberships))
	tenantIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		// A membership without a role cannot mint an access token.
		if !m.IsActive || m.Tenant == nil || !m.Tenant.IsActive || m.Role == nil {
			continue
		}
		contexts = append(contexts, TenantContext{
			TenantID:     s.ids.ToPublicID("tenant", m.TenantID),
			TenantCode:   m.Tenant.Code,
			TenantName:   m.Tenant.Name,
			MembershipID: s.ids.ToPublicID("membership", m.ID),
			RoleName:     m.Role.Name,
		})
		tenantIDs = append(tenantIDs, m.TenantID)
	}

	result := &LoginResult{
		UserID:                   s.ids.ToPublicID("user", userID),
		Email:                    user.Email,
		DisplayName:              user.DisplayName,
		RequiresContextSelection: len(contexts) != 1,
		AvailableContexts:        contexts,
	}
	var selectedTenant *uuid.UUID
	details := fmt.Sprintf("login successful; %d tenant context(s)", len(contexts))
	if len(contexts) == 1 {
		tokens, err := s.selectContext(ctx, SelectContextRequest{
			UserID:    userID,
			TenantID:  tenantIDs[0],
			DeviceID:  req.DeviceID,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		}, false)
		observability.RecordContextSelection(outcomeStatus(err))
		if err != nil {
			auditLogin(&userID, domain.AuditFailed, "automatic context selection failed")
			return nil, err
		}
		result.Tokens = tokens
		selectedTenant = &tenantIDs[0]
		details = fmt.Sprintf("login successful; tenant %s selected automatically", tokens.TenantCode)
	}

	s.audit.RecordAuditLog(ctx, AuditLogInput{
		UserID:    &userID,
		TenantID:  selectedTenant,
		Event:     domain.AuditLogin,
		Result:    domain.AuditSuccess,
		Details:   details,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	s.audit.LogAuthenticationSuccess(ctx, userID, email, req.IPAddress, req.UserAgent, req.Geo)
	s.publish(ctx, notify.EventUserLoggedIn, userID.String(), userLoggedInEvent{
		UserID:     userID.String(),
		Email:      user.Email,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		OccurredAt: now,
	})
	s.logger.InfoContext(ctx, "login succeeded", "user_id", userID.String(), "contexts", len(contexts))
	return result, nil
}

// recordPasswordFailure counts the failure in storage and opens a lockout
// window once the policy threshold is reached. The state is persisted even
// though the login fails.
func (s *AuthService) recordPasswordFailure(ctx context.Context, user *domain.User, req LoginRequest, now time.Time, auditLogin func(*uuid.UUID, domain.AuditResult, string)) error {
	userID := user.ID
	state, err := s.users.RecordLoginFailure(ctx, userID, s.policy.MaxFailedAttempts, now.Add(s.policy.Duration))
	if err != nil {
		auditLogin(&userID, domain.AuditFailed, "internal error")
		return s.internal(ctx, "record failed login", err)
	}
	locked := state.LockoutEnd != nil && now.Before(*state.LockoutEnd)
	reason := "invalid password"
	if locked {
		reason = "locked after repeated failures"
		s.logger.WarnContext(ctx, "user locked out", "user_id", userID.String(), "failed_attempts", state.AccessFailedCount)
	}
	s.logger.WarnContext(ctx, "login failed", "reason", strings.ReplaceAll(reason, " ", "_"), "user_id", userID.String())
	auditLogin(&userID, domain.AuditFailed, reason)
	s.audit.LogAuthenticationFailure(ctx, &userID, user.Email, req.IPAddress, req.UserAgent, reason, req.Geo)
	return ErrInvalidCredentials
}

// lockedAfterRace handles a correct password that lost to a lockout opened
// by failures running in parallel with it.
func (s *AuthService) lockedAfterRace(ctx context.Context, user *domain.User, req LoginRequest, now time.Time, auditLogin func(*uuid.UUID, domain.AuditResult, string)) error {
	userID := user.ID
	until := now.Add(s.policy.Duration)
	if fresh, err := s.users.FindByID(ctx, userID); err == nil && fresh.LockoutEnd != nil {
		until = fresh.LockoutEnd.UTC()
	}
	details := fmt.Sprintf("User locked until %s", until.Format("2006-01-02 15:04:05 UTC"))
	s.logger.WarnContext(ctx, "login failed", "reason", "user_locked", "user_id", userID.String())
	auditLogin(&userID, domain.AuditFailed, details)
	s.audit.LogAuthenticationFailure(ctx, &userID, user.Email, req.IPAddress, req.UserAgent, details, req.Geo)
	return &LockedError{Until: until}
}

func (s *AuthService) SelectContext(ctx context.Context, req SelectContextRequest) (*ContextTokens, error) {
	ctx, span := observability.StartSpan(ctx, "auth.select_context")
	defer span.End()

	tokens, err := s.selectContext(ctx, req, true)
	observability.RecordContextSelection(outcomeStatus(err))
	if err != nil {
		span.RecordError(err)
	}
	return tokens, err
}

// selectContext opens a session in the chosen tenant. writeAudit is false
// when Login selects the only context itself and records the outcome in its
// own audit entry.
func (s *AuthService) selectContext(ctx context.Context, req SelectContextRequest, writeAudit bool) (*ContextTokens, error) {
	userID, tenantID := req.UserID, req.TenantID
	auditSelect := func(result domain.AuditResult, details string) {
		if !writeAudit {
			return
		}
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:    &userID,
			TenantID:  &tenantID,
			Event:     domain.AuditSelectContext,
			Result:    result,
			Details:   details,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
	}

	membership, err := s.memberships.FindByUserAndTenant(ctx, userID, tenantID)
	if err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		auditSelect(domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "find membership", err)
	}
	if membership == nil || !membership.IsActive || membership.Tenant == nil || !membership.Tenant.IsActive || membership.Role == nil {
		s.audit.LogEvent(ctx, SecurityEventInput{
			UserID:    userID.String(),
			EventType: domain.EventContextSelectionFailed,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			Details:   "Invalid tenant context selection",
		})
		auditSelect(domain.AuditFailed, "invalid tenant context")
		return nil, ErrInvalidContext
	}

	refresh, err := s.tokens.IssueRefresh(ctx, userID, tenantID, req.DeviceID)
	if err != nil {
		auditSelect(domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "issue refresh credential", err)
	}
	session, err := s.sessions.CreateSession(ctx, CreateSessionParams{
		UserID:              userID,
		TenantID:            tenantID,
		Type:                domain.SessionTypeNormal,
		IPAddress:           req.IPAddress,
		UserAgent:           req.UserAgent,
		DeviceID:            req.DeviceID,
		RefreshCredentialID: &refresh.Credential.ID,
	})
	if err != nil {
		if revokeErr := s.tokens.Revoke(ctx, refresh.Credential.ID); revokeErr != nil {
			s.logger.WarnContext(ctx, "orphan refresh credential not revoked", "error", revokeErr)
		}
		auditSelect(domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "create session", err)
	}
	access, accessExpiresAt, err := s.tokens.IssueAccess(userID, tenantID, session.ID, membership.Role.Name)
	if err != nil {
		if _, revokeErr := s.sessions.RevokeSession(ctx, session.ID, "token_issue_failed"); revokeErr != nil {
			s.logger.WarnContext(ctx, "session not revoked after token failure", "error", revokeErr)
		}
		auditSelect(domain.AuditFailed, "internal error")
		return nil, s.internal(ctx, "mint access token", err)
	}

	auditSelect(domain.AuditSuccess, fmt.Sprintf("selected tenant %s", membership.Tenant.Code))
	s.audit.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		TenantID:  &tenantID,
		EventType: domain.EventContextSelected,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		DeviceID:  req.DeviceID,
		Success:   true,
		Details:   fmt.Sprintf("Selected tenant: %s", membership.Tenant.Name),
	})
	roleID := ""
	if membership.RoleID != nil {
		roleID = membership.RoleID.String()
	}
	s.publish(ctx, notify.EventTenantContextSelected, userID.String(), contextSelectedEvent{
		UserID:     userID.String(),
		TenantID:   tenantID.String(),
		RoleID:     roleID,
		SessionID:  session.ID.String(),
		OccurredAt: s.now(),
	})
	s.logger.InfoContext(ctx, "context selected",
		"user_id", userID.String(),
		"tenant_id", tenantID.String(),
		"session_id", session.ID.String(),
	)

	return &ContextTokens{
		UserID:               s.ids.ToPublicID("user", userID),
		TenantID:             s.ids.ToPublicID("tenant", tenantID),
		TenantCode:           membership.Tenant.Code,
		TenantName:           membership.Tenant.Name,
		RoleName:             membership.Role.Name,
		SessionID:            s.ids.ToPublicID("session", session.ID),
		AccessToken:          access,
		AccessTokenExpiresAt: accessExpiresAt,
		RefreshToken:         refresh.Token,
		ExpiresAt:            session.ExpiresAt,
	}, nil
}

// Logout revokes one session of the user, or all of them when sessionID is
// nil. Both forms are idempotent.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) error {
	ctx, span := observability.StartSpan(ctx, "auth.logout")
	defer span.End()

	scope := "all"
	if sessionID != nil {
		scope = "session"
	}
	err := s.logout(ctx, userID, sessionID)
	observability.RecordAuthLogout(scope, outcomeStatus(err))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *AuthService) logout(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) error {
	auditLogout := func(result domain.AuditResult, details string) {
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:  &userID,
			Event:   domain.AuditLogout,
			Result:  result,
			Details: details,
		})
	}

	if sessionID != nil {
		status, err := s.sessions.RevokeSessionForUser(ctx, userID, *sessionID, RevokeReasonLogout)
		if errors.Is(err, ErrSessionNotFound) {
			auditLogout(domain.AuditFailed, "session not found")
			return ErrSessionNotFound
		}
		if err != nil {
			auditLogout(domain.AuditFailed, "internal error")
			return s.internal(ctx, "revoke session", err)
		}
		auditLogout(domain.AuditSuccess, fmt.Sprintf("session %s", status))
		s.audit.LogEvent(ctx, SecurityEventInput{
			UserID:    userID.String(),
			EventType: domain.EventLogout,
			Success:   true,
			Details:   "User logged out - session revoked",
		})
		return nil
	}

	n, err := s.sessions.RevokeAllSessions(ctx, userID, RevokeReasonLogoutAll)
	if err != nil {
		auditLogout(domain.AuditFailed, "internal error")
		return s.internal(ctx, "revoke all sessions", err)
	}
	auditLogout(domain.AuditSuccess, fmt.Sprintf("all sessions revoked (%d)", n))
	s.audit.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		EventType: domain.EventLogoutAll,
		Success:   true,
		Details:   fmt.Sprintf("All sessions revoked - %d sessions", n),
	})
	return nil
}

// ValidateCredentials checks an email and password pair without touching
// lockout state or writing audit records.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, repository.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	return s.hasher.Verify(user.PasswordHash, password), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	ctx, span := observability.StartSpan(ctx, "auth.change_password")
	defer span.End()

	userID := req.UserID
	auditChange := func(result domain.AuditResult, details string) {
		s.audit.RecordAuditLog(ctx, AuditLogInput{
			UserID:    &userID,
			Event:     domain.AuditPasswordChange,
			Result:    result,
			Details:   details,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return s.internal(ctx, "find user", err)
	}
	if user.PasswordHash == "" || !s.hasher.Verify(user.PasswordHash, req.CurrentPassword) {
		auditChange(domain.AuditFailed, "current password incorrect")
		return ErrInvalidCredentials
	}
	if len(req.NewPassword) < minPasswordLength {
		auditChange(domain.AuditFailed, "new password rejected")
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		auditChange(domain.AuditFailed, "internal error")
		return s.internal(ctx, "update password", err)
	}
	auditChange(domain.AuditSuccess, "password changed")
	s.audit.LogPasswordChange(ctx, userID, req.IPAddress, req.UserAgent)
	if req.KeepSessionID != nil {
		if _, err := s.sessions.RevokeOtherSessions(ctx, userID, *req.KeepSessionID); err != nil {
			s.logger.WarnContext(ctx, "revoke other sessions after password change failed", "error", err)
		}
	}
	if s.email != nil && s.async != nil && user.EmailConfirmed {
		to := user.Email
		s.async.Go(ctx, "password_changed_email", func(ctx context.Context) error {
			return s.email.SendTemplate(ctx, notify.EmailMessage{
				To:       to,
				Subject:  passwordChangedSubject,
				Template: passwordChangedTemplate,
				Data:     map[string]string{"dateTime": s.now().Format("2006-01-02 15:04:05 UTC")},
			})
		})
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return nil
}

func (s *AuthService) GetUserInfo(ctx context.Context, userID uuid.UUID) (*UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		ID:             s.ids.ToPublicID("user", user.ID),
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		EmailConfirmed: user.EmailConfirmed,
		LastLoginAt:    user.LastLoginAt,
		CreatedAt:      user.CreatedAt,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType, key string, payload any) {
	if s.publisher == nil || s.async == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "event encode failed", "event_type", eventType, "error", err)
		return
	}
	s.async.Go(ctx, eventType, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, eventType, body, key)
	})
}

// internal logs the cause and hides it behind ErrInternal.
func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "auth operation failed", "operation", op, "error", err)
	return ErrInternal
}

func outcomeStatus(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(ErrorCode(err))
}
