package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/http/middleware"
	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

const defaultSelectionTTL = 5 * time.Minute

// SelectionTokens proves a completed password login between Login and
// SelectContext.
type SelectionTokens interface {
	MintSelectionToken(userID uuid.UUID, ttl time.Duration) (string, time.Time, error)
	ParseSelectionToken(raw string) (uuid.UUID, error)
}

type AuthHandler struct {
	auth         service.AuthServiceInterface
	selection    SelectionTokens
	ids          security.PublicIDCodec
	selectionTTL time.Duration
}

func NewAuthHandler(auth service.AuthServiceInterface, selection SelectionTokens, ids security.PublicIDCodec) *AuthHandler {
	return &AuthHandler{auth: auth, selection: selection, ids: ids, selectionTTL: defaultSelectionTTL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	*service.LoginResult
	SelectionToken          string     `json:"selection_token,omitempty"`
	SelectionTokenExpiresAt *time.Time `json:"selection_token_expires_at,omitempty"`
}

type selectContextRequest struct {
	SelectionToken string `json:"selection_token"`
	TenantID       string `json:"tenant_id"`
	DeviceID       string `json:"device_id"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeValidationError(w, r, "email and password are required")
		return
	}
	result, err := h.auth.Login(r.Context(), service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: middleware.ClientIPKey(r),
		UserAgent: r.UserAgent(),
		DeviceID:  deviceID(r, req.DeviceID),
		Geo:       geoFromHeaders(r),
	})
	if err != nil {
		observability.Audit(r, "auth.login", "failure", service.ErrorCode(err))
		writeServiceError(w, r, "login", err)
		return
	}
	resp := loginResponse{LoginResult: result}
	if result.RequiresContextSelection && len(result.AvailableContexts) > 0 {
		userID, ok := h.ids.FromPublicID(result.UserID)
		if !ok {
			writeServiceError(w, r, "login", service.ErrInternal)
			return
		}
		token, expiresAt, err := h.selection.MintSelectionToken(userID, h.selectionTTL)
		if err != nil {
			writeServiceError(w, r, "login", err)
			return
		}
		resp.SelectionToken = token
		resp.SelectionTokenExpiresAt = &expiresAt
	}
	observability.Audit(r, "auth.login", "success", "", "user_id", result.UserID)
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) SelectContext(w http.ResponseWriter, r *http.Request) {
	var req selectContextRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, r, "invalid request body")
		return
	}
	userID, err := h.selection.ParseSelectionToken(req.SelectionToken)
	if err != nil {
		response.Unauthorized(w, r, "invalid selection token")
		return
	}
	tenantID, ok := h.ids.FromPublicID(req.TenantID)
	if !ok {
		writeValidationError(w, r, "invalid tenant_id")
		return
	}
	tokens, err := h.auth.SelectContext(r.Context(), service.SelectContextRequest{
		UserID:    userID,
		TenantID:  tenantID,
		DeviceID:  deviceID(r, req.DeviceID),
		IPAddress: middleware.ClientIPKey(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		observability.Audit(r, "auth.select_context", "failure", service.ErrorCode(err))
		writeServiceError(w, r, "select_context", err)
		return
	}
	observability.Audit(r, "auth.select_context", "success", "", "user_id", tokens.UserID, "tenant_id", tokens.TenantID)
	response.JSON(w, r, http.StatusOK, tokens)
}

// Refresh is unauthenticated: the refresh token is the credential.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeValidationError(w, r, "refresh_token is required")
		return
	}
	tokens, err := h.auth.RefreshTokens(r.Context(), service.RefreshRequest{
		RefreshToken: req.RefreshToken,
		IPAddress:    middleware.ClientIPKey(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		observability.Audit(r, "auth.refresh", "failure", service.ErrorCode(err))
		writeServiceError(w, r, "refresh", err)
		return
	}
	observability.Audit(r, "auth.refresh", "success", "", "user_id", tokens.UserID, "session_id", tokens.SessionID)
	response.JSON(w, r, http.StatusOK, tokens)
}

func (h *AuthHandler) RevokeRefresh(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req refreshTokenRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeValidationError(w, r, "refresh_token is required")
		return
	}
	if err := h.auth.RevokeRefreshToken(r.Context(), p.UserID, req.RefreshToken); err != nil {
		writeServiceError(w, r, "revoke_refresh", err)
		return
	}
	observability.Audit(r, "auth.revoke_refresh", "success", "", "user_id", p.UserID.String())
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "revoked"})
}

// Logout ends the caller's current session, or every session with ?all=true.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var sessionID *uuid.UUID
	if r.URL.Query().Get("all") != "true" {
		sessionID = &p.SessionID
	}
	if err := h.auth.Logout(r.Context(), p.UserID, sessionID); err != nil {
		writeServiceError(w, r, "logout", err)
		return
	}
	scope := "session"
	if sessionID == nil {
		scope = "all"
	}
	observability.Audit(r, "auth.logout", "success", "", "user_id", p.UserID.String(), "scope", scope)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out", "scope": scope})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, r, "invalid request body")
		return
	}
	keep := p.SessionID
	err := h.auth.ChangePassword(r.Context(), service.ChangePasswordRequest{
		UserID:          p.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		KeepSessionID:   &keep,
		IPAddress:       middleware.ClientIPKey(r),
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, "change_password", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	info, err := h.auth.GetUserInfo(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       info,
		"tenant_id":  h.ids.ToPublicID("tenant", p.TenantID),
		"session_id": h.ids.ToPublicID("session", p.SessionID),
		"role":       p.Role,
	})
}
