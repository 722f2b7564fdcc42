package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit writes one structured line per security-relevant HTTP outcome.
// Failures are logged at warn level so they survive an info-level filter.
func Audit(r *http.Request, event, outcome, reason string, attrs ...any) {
	requestID := chimiddleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(chimiddleware.RequestIDHeader)
	}
	level := slog.LevelInfo
	if outcome != "success" {
		level = slog.LevelWarn
	}
	args := []any{
		slog.String("event", event),
		slog.String("outcome", outcome),
		slog.Group("http",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", requestID),
		),
	}
	if reason != "" {
		args = append(args, slog.String("reason", reason))
	}
	args = append(args, attrs...)
	slog.Log(r.Context(), level, "security audit", args...)
}
