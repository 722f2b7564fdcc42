package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
)

// Principal is the tenant-scoped identity carried by a valid access token.
type Principal struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	SessionID uuid.UUID
	Role      string
}

// SessionGuard lets the middleware reject tokens whose session is no longer
// live and stamp activity on the sessions it admits.
type SessionGuard interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	IsInactive(ctx context.Context, sessionID uuid.UUID, timeout time.Duration) (bool, error)
	UpdateActivity(ctx context.Context, sessionID uuid.UUID) error
}

func AuthMiddleware(jwtMgr *security.JWTManager, guard SessionGuard, inactivityTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				raw = strings.TrimSpace(auth[7:])
			}
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Unauthorized(w, r, "missing access token")
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", "bearer")
				response.Unauthorized(w, r, "invalid access token")
				return
			}
			principal, err := principalFromClaims(claims)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "malformed", "bearer")
				response.Unauthorized(w, r, "invalid access token")
				return
			}
			if guard != nil {
				if status, reason := checkSession(r.Context(), guard, principal, inactivityTimeout); status != 0 {
					observability.RecordAccessTokenValidation(r.Context(), reason, "bearer")
					observability.Audit(r, "auth.session_check", "rejected", reason, "user_id", principal.UserID.String())
					if status == http.StatusUnauthorized {
						response.Error(w, r, status, response.CodeSessionInvalid, "session is no longer active", nil)
					} else {
						response.Error(w, r, status, response.CodeInternal, "session check failed", nil)
					}
					return
				}
				// Best effort: a failed stamp must not fail the request.
				if err := guard.UpdateActivity(r.Context(), principal.SessionID); err != nil {
					slog.WarnContext(r.Context(), "session activity not recorded", "session_id", principal.SessionID.String(), "error", err)
				}
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", "bearer")
			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromClaims(claims *security.Claims) (Principal, error) {
	userID, err := claims.UserID()
	if err != nil {
		return Principal{}, err
	}
	tenantID, err := claims.Tenant()
	if err != nil {
		return Principal{}, err
	}
	sessionID, err := claims.Session()
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: userID, TenantID: tenantID, SessionID: sessionID, Role: claims.Role}, nil
}

func checkSession(ctx context.Context, guard SessionGuard, p Principal, inactivityTimeout time.Duration) (int, string) {
	session, err := guard.GetSession(ctx, p.SessionID)
	if errors.Is(err, service.ErrSessionNotFound) {
		return http.StatusUnauthorized, "session_unknown"
	}
	if err != nil {
		return http.StatusInternalServerError, "session_lookup_failed"
	}
	if session.UserID != p.UserID || session.IsRevoked() || session.IsExpired(time.Now().UTC()) {
		return http.StatusUnauthorized, "session_revoked"
	}
	inactive, err := guard.IsInactive(ctx, p.SessionID, inactivityTimeout)
	if err != nil {
		return http.StatusInternalServerError, "session_lookup_failed"
	}
	if inactive {
		return http.StatusUnauthorized, "session_inactive"
	}
	return 0, ""
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}
