package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/tenant-session-core/internal/health"
	"github.com/sandeepkv93/tenant-session-core/internal/http/handler"
	"github.com/sandeepkv93/tenant-session-core/internal/http/middleware"
	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	JWTManager        *security.JWTManager
	SessionGuard      middleware.SessionGuard
	InactivityTimeout time.Duration
	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter("api", dep.APIRateLimitRPM, time.Minute).Middleware())

	authLimiter := middleware.NewRateLimiter("auth", dep.AuthRateLimitRPM, time.Minute).Middleware()
	authenticated := middleware.AuthMiddleware(dep.JWTManager, dep.SessionGuard, dep.InactivityTimeout)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeDependencyUnready, "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/select-context", dep.AuthHandler.SelectContext)
			r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
			r.With(authenticated).Post("/revoke", dep.AuthHandler.RevokeRefresh)
			r.With(authenticated).Post("/logout", dep.AuthHandler.Logout)
			r.With(authenticated, authLimiter).Post("/change-password", dep.AuthHandler.ChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/me", dep.AuthHandler.Me)
			r.Get("/me/sessions", dep.UserHandler.Sessions)
			r.Delete("/me/sessions/{session_id}", dep.UserHandler.RevokeSession)
			r.Post("/me/sessions/revoke-others", dep.UserHandler.RevokeOtherSessions)
			r.Post("/me/sessions/activity", dep.UserHandler.TouchSession)
			r.Get("/me/devices", dep.UserHandler.Devices)
			r.Post("/me/devices/{device_id}/trust", dep.UserHandler.TrustDevice)
			r.Post("/me/devices/{device_id}/block", dep.UserHandler.BlockDevice)
			r.Delete("/me/devices/{device_id}", dep.UserHandler.RemoveDevice)
			r.Get("/me/security-events", dep.UserHandler.SecurityEvents)
			r.With(middleware.RequireRole("Owner", "Admin")).Get("/tenants/current/security-events", dep.UserHandler.TenantSecurityEvents)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
