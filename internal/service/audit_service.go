package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const (
	systemIPAddress   = "System"
	bruteForceAttempt = "BruteForceAttempt"
)

// GeoLocation is the coarse origin of a request. Raw, when set, is stored
// verbatim instead of the country/city pair.
type GeoLocation struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Raw     string `json:"-"`
}

// SecurityEventInput describes one event. UserID is a public or raw id and
// is dropped when it cannot be resolved.
type SecurityEventInput struct {
	UserID    string
	TenantID  *uuid.UUID
	EventType domain.SecurityEventType
	Principal string
	IPAddress string
	UserAgent string
	DeviceID  string
	Success   bool
	Details   string
	Geo       *GeoLocation
}

type AuditLogInput struct {
	UserID    *uuid.UUID
	TenantID  *uuid.UUID
	Event     domain.AuditEvent
	Result    domain.AuditResult
	Details   string
	IPAddress string
	UserAgent string
}

type SecurityEventView struct {
	ID               string                   `json:"id"`
	EventType        domain.SecurityEventType `json:"event_type"`
	AnonymizedUserID string                   `json:"anonymized_user_id,omitempty"`
	IPAddress        string                   `json:"ip_address"`
	UserAgent        string                   `json:"user_agent"`
	DeviceID         string                   `json:"device_id,omitempty"`
	Success          bool                     `json:"success"`
	Details          string                   `json:"details,omitempty"`
	GeoLocation      json.RawMessage          `json:"geo_location"`
	RiskScore        int                      `json:"risk_score"`
	OccurredAt       time.Time                `json:"occurred_at"`
}

// SecurityAuditService appends security events and lifecycle audit entries.
// Writes never fail the caller.
type SecurityAuditService struct {
	events   repository.SecurityEventRepository
	audits   repository.AuditLogRepository
	ids      security.PublicIDCodec
	digester security.Digester
	policy   config.AuditPolicy
	logger   *slog.Logger
	now      func() time.Time
}

func NewSecurityAuditService(
	events repository.SecurityEventRepository,
	audits repository.AuditLogRepository,
	ids security.PublicIDCodec,
	digester security.Digester,
	policy config.AuditPolicy,
	logger *slog.Logger,
) *SecurityAuditService {
	if logger == nil {
		logger = slog.Default()
	}
	if digester == nil {
		digester = security.SHA256Digester{}
	}
	return &SecurityAuditService{
		events:   events,
		audits:   audits,
		ids:      ids,
		digester: digester,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SecurityAuditService) LogEvent(ctx context.Context, in SecurityEventInput) {
	if !in.EventType.Valid() {
		s.logger.WarnContext(ctx, "security event rejected", "event_type", string(in.EventType), "reason", "unknown_type")
		observability.RecordSecurityEvent(ctx, string(in.EventType), "rejected")
		return
	}
	event := &domain.SecurityEvent{
		ID:          uuid.New(),
		TenantID:    in.TenantID,
		EventType:   in.EventType,
		Principal:   repository.NormalizeEmail(in.Principal),
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		DeviceID:    in.DeviceID,
		Success:     in.Success,
		Details:     in.Details,
		GeoLocation: datatypes.JSON(geoLocationJSON(in.Geo)),
		RiskScore:   CalculateRiskScore(in.EventType, in.Success, in.Geo),
		OccurredAt:  s.now(),
	}
	if in.UserID != "" && s.ids != nil {
		if id, ok := s.ids.FromPublicID(in.UserID); ok {
			anonymized := security.AnonymizeID(s.digester, id.String())
			event.UserID = &id
			event.AnonymizedUserID = &anonymized
		}
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "security event write failed",
			"event_type", string(in.EventType),
			"error", err,
		)
		observability.RecordSecurityEvent(ctx, string(in.EventType), "failed")
		return
	}
	observability.RecordSecurityEvent(ctx, string(in.EventType), "recorded")
}

// CalculateRiskScore weighs an event on a 0..100 scale.
func CalculateRiskScore(eventType domain.SecurityEventType, success bool, geo *GeoLocation) int {
	score := 0
	if !success {
		score += 30
	}
	switch eventType {
	case domain.EventLoginFailed:
		score += 20
	case domain.EventSuspiciousActivity:
		score += 50
	case domain.EventNewDeviceDetected:
		score += 15
	}
	if geo == nil || geo.Country == "" {
		score += 10
	}
	if score > 100 {
		return 100
	}
	return score
}

func geoLocationJSON(geo *GeoLocation) []byte {
	if geo == nil {
		return []byte("{}")
	}
	if geo.Raw != "" && json.Valid([]byte(geo.Raw)) {
		return []byte(geo.Raw)
	}
	if geo.Country == "" && geo.City == "" {
		return []byte("{}")
	}
	out, err := json.Marshal(struct {
		Country string `json:"country"`
		City    string `json:"city"`
	}{geo.Country, geo.City})
	if err != nil {
		return []byte("{}")
	}
	return out
}

// CheckForSuspiciousPattern reports whether failed logins for the email and
// address pair reached the brute-force threshold within the window, and
// records a SuspiciousActivity event when they did.
func (s *SecurityAuditService) CheckForSuspiciousPattern(ctx context.Context, email, ipAddress string) bool {
	principal := repository.NormalizeEmail(email)
	if principal == "" || s.policy.BruteForceThreshold <= 0 {
		return false
	}
	since := s.now().Add(-s.policy.BruteForceWindow)
	n, err := s.events.CountSince(ctx, domain.EventLoginFailed, principal, ipAddress, since)
	if err != nil {
		s.logger.WarnContext(ctx, "suspicious pattern check failed", "error", err)
		return false
	}
	if n < int64(s.policy.BruteForceThreshold) {
		return false
	}
	s.LogEvent(ctx, SecurityEventInput{
		EventType: domain.EventSuspiciousActivity,
		Principal: principal,
		IPAddress: ipAddress,
		Details:   fmt.Sprintf("%s: %d failed logins from %s in %s", bruteForceAttempt, n, ipAddress, s.policy.BruteForceWindow),
	})
	s.logger.WarnContext(ctx, "brute force pattern detected", "ip", ipAddress, "failed_attempts", n)
	return true
}

func (s *SecurityAuditService) LogAuthenticationSuccess(ctx context.Context, userID uuid.UUID, email, ipAddress, userAgent string, geo *GeoLocation) {
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		EventType: domain.EventLoginSuccess,
		Principal: email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
		Geo:       geo,
	})
}

// LogAuthenticationFailure records a LoginFailed event and runs the
// brute-force check for the same email and address.
func (s *SecurityAuditService) LogAuthenticationFailure(ctx context.Context, userID *uuid.UUID, email, ipAddress, userAgent, reason string, geo *GeoLocation) {
	in := SecurityEventInput{
		EventType: domain.EventLoginFailed,
		Principal: email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   fmt.Sprintf("email=%s; reason=%s", repository.NormalizeEmail(email), reason),
		Geo:       geo,
	}
	if userID != nil {
		in.UserID = userID.String()
	}
	s.LogEvent(ctx, in)
	s.CheckForSuspiciousPattern(ctx, email, ipAddress)
}

func (s *SecurityAuditService) LogPasswordChange(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) {
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		EventType: domain.EventPasswordChanged,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
		Details:   "Password changed",
	})
}

func (s *SecurityAuditService) LogNewDevice(ctx context.Context, device *domain.UserDevice, userAgent string) {
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    device.UserID.String(),
		EventType: domain.EventNewDeviceDetected,
		IPAddress: device.LastIPAddress,
		UserAgent: userAgent,
		DeviceID:  device.ID.String(),
		Success:   true,
		Details:   fmt.Sprintf("New device: %s", device.DeviceName),
	})
}

func (s *SecurityAuditService) LogSessionCreated(ctx context.Context, session *domain.Session) {
	tenantID := session.TenantID
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    session.UserID.String(),
		TenantID:  &tenantID,
		EventType: domain.EventSessionCreated,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		DeviceID:  session.DeviceID,
		Success:   true,
		Details:   fmt.Sprintf("Session %s created (%s)", session.ID, session.SessionType),
	})
}

// LogSessionTerminated records revocations initiated by the system rather
// than a client request, so the address is always "System".
func (s *SecurityAuditService) LogSessionTerminated(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID, details string) {
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		TenantID:  tenantID,
		EventType: domain.EventSessionRevoked,
		IPAddress: systemIPAddress,
		Success:   true,
		Details:   details,
	})
}

func (s *SecurityAuditService) LogPermissionGranted(ctx context.Context, userID uuid.UUID, tenantID *uuid.UUID, permission, grantedBy string) {
	s.LogEvent(ctx, SecurityEventInput{
		UserID:    userID.String(),
		TenantID:  tenantID,
		EventType: domain.EventPermissionGranted,
		IPAddress: systemIPAddress,
		Success:   true,
		Details:   fmt.Sprintf("Permission %s granted by %s", permission, grantedBy),
	})
}

func (s *SecurityAuditService) LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, ipAddress, activity, details string) {
	in := SecurityEventInput{
		EventType: domain.EventSuspiciousActivity,
		IPAddress: ipAddress,
		Details:   fmt.Sprintf("%s: %s", activity, details),
	}
	if userID != nil {
		in.UserID = userID.String()
	}
	s.LogEvent(ctx, in)
}

func (s *SecurityAuditService) RecordAuditLog(ctx context.Context, in AuditLogInput) {
	entry := &domain.AuditLog{
		ID:        uuid.New(),
		UserID:    in.UserID,
		TenantID:  in.TenantID,
		Event:     in.Event,
		Result:    in.Result,
		Details:   in.Details,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Timestamp: s.now(),
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit log write failed",
			"event", string(in.Event),
			"result", string(in.Result),
			"error", err,
		)
	}
}

func (s *SecurityAuditService) GetUserEvents(ctx context.Context, publicUserID string, req repository.PageRequest) (repository.PageResult[SecurityEventView], error) {
	userID, ok := s.ids.FromPublicID(publicUserID)
	if !ok {
		return repository.PageResult[SecurityEventView]{Items: []SecurityEventView{}}, nil
	}
	page, err := s.events.ListByUser(ctx, userID, req)
	if err != nil {
		return repository.PageResult[SecurityEventView]{}, err
	}
	return s.toViews(page), nil
}

func (s *SecurityAuditService) GetTenantEvents(ctx context.Context, tenantID uuid.UUID, req repository.PageRequest) (repository.PageResult[SecurityEventView], error) {
	page, err := s.events.ListByTenant(ctx, tenantID, req)
	if err != nil {
		return repository.PageResult[SecurityEventView]{}, err
	}
	return s.toViews(page), nil
}

func (s *SecurityAuditService) toViews(page repository.PageResult[domain.SecurityEvent]) repository.PageResult[SecurityEventView] {
	out := repository.PageResult[SecurityEventView]{
		Items:      make([]SecurityEventView, 0, len(page.Items)),
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
	for _, e := range page.Items {
		view := SecurityEventView{
			ID:          s.ids.ToPublicID("event", e.ID),
			EventType:   e.EventType,
			IPAddress:   e.IPAddress,
			UserAgent:   e.UserAgent,
			DeviceID:    e.DeviceID,
			Success:     e.Success,
			Details:     e.Details,
			GeoLocation: json.RawMessage(e.GeoLocation),
			RiskScore:   e.RiskScore,
			OccurredAt:  e.OccurredAt,
		}
		if len(view.GeoLocation) == 0 {
			view.GeoLocation = json.RawMessage("{}")
		}
		if e.AnonymizedUserID != nil {
			view.AnonymizedUserID = *e.AnonymizedUserID
		}
		out.Items = append(out.Items, view)
	}
	return out
}
