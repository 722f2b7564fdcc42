package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

// UserHandler serves the caller's own sessions, devices and security history.
type UserHandler struct {
	sessions service.SessionServiceInterface
	devices  service.DeviceServiceInterface
	events   service.SecurityAuditReader
	ids      security.PublicIDCodec
}

func NewUserHandler(sessions service.SessionServiceInterface, devices service.DeviceServiceInterface, events service.SecurityAuditReader, ids security.PublicIDCodec) *UserHandler {
	return &UserHandler{sessions: sessions, devices: devices, events: events, ids: ids}
}

func (h *UserHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, ok := h.ids.FromPublicID(chi.URLParam(r, param))
	if !ok {
		writeValidationError(w, r, "invalid "+param)
	}
	return id, ok
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	items, err := h.sessions.ListActiveSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		writeServiceError(w, r, "list_sessions", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": items})
}

func (h *UserHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	sessionID, ok := h.pathID(w, r, "session_id")
	if !ok {
		return
	}
	status, err := h.sessions.RevokeSessionForUser(r.Context(), p.UserID, sessionID, service.RevokeReasonUser)
	if err != nil {
		writeServiceError(w, r, "revoke_session", err)
		return
	}
	observability.Audit(r, "session.revoke", "success", status, "user_id", p.UserID.String())
	response.JSON(w, r, http.StatusOK, map[string]string{"status": status})
}

func (h *UserHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	n, err := h.sessions.RevokeOtherSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		writeServiceError(w, r, "revoke_other_sessions", err)
		return
	}
	observability.Audit(r, "session.revoke_others", "success", "", "user_id", p.UserID.String(), "count", n)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked_count": n})
}

func (h *UserHandler) TouchSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.sessions.UpdateActivity(r.Context(), p.SessionID); err != nil {
		writeServiceError(w, r, "touch_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Devices(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	items, err := h.devices.ListDevices(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, "list_devices", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"devices": items})
}

func (h *UserHandler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	h.mutateDevice(w, r, "trust_device", h.devices.TrustDevice, "trusted")
}

func (h *UserHandler) BlockDevice(w http.ResponseWriter, r *http.Request) {
	h.mutateDevice(w, r, "block_device", h.devices.BlockDevice, "blocked")
}

func (h *UserHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	h.mutateDevice(w, r, "remove_device", h.devices.RemoveDevice, "removed")
}

func (h *UserHandler) mutateDevice(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context, userID, deviceID uuid.UUID) error, status string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	deviceID, ok := h.pathID(w, r, "device_id")
	if !ok {
		return
	}
	if err := fn(r.Context(), p.UserID, deviceID); err != nil {
		writeServiceError(w, r, operation, err)
		return
	}
	observability.Audit(r, "device."+status, "success", "", "user_id", p.UserID.String())
	response.JSON(w, r, http.StatusOK, map[string]string{"status": status})
}

func (h *UserHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := h.events.GetUserEvents(r.Context(), h.ids.ToPublicID("user", p.UserID), pageRequest(r))
	if err != nil {
		writeServiceError(w, r, "user_security_events", err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// TenantSecurityEvents lists events of the caller's current tenant. The route
// is restricted to tenant administrators.
func (h *UserHandler) TenantSecurityEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := h.events.GetTenantEvents(r.Context(), p.TenantID, pageRequest(r))
	if err != nil {
		writeServiceError(w, r, "tenant_security_events", err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}
