package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandeepkv93/tenant-session-core/internal/http/middleware"
	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func pageRequest(r *http.Request) repository.PageRequest {
	q := r.URL.Query()
	return repository.PageRequest{
		Page:     parseIntDefault(q.Get("page"), repository.DefaultPage),
		PageSize: parseIntDefault(q.Get("page_size"), repository.DefaultPageSize),
	}
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUserLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrInvalidContext), errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDeviceNotFound), errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDeviceLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	code := service.ErrorCode(err)
	msg := err.Error()
	var details any
	var locked *service.LockedError
	if errors.As(err, &locked) {
		details = map[string]any{"locked_until": locked.Until}
	}
	if status == http.StatusInternalServerError {
		msg = "internal server error"
		slog.ErrorContext(r.Context(), "request failed", "operation", operation, "error", err)
	} else {
		slog.WarnContext(r.Context(), "request rejected", "operation", operation, "status", status, "code", code)
	}
	response.Error(w, r, status, code, msg, details)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, msg string) {
	response.Error(w, r, http.StatusBadRequest, response.CodeValidation, msg, nil)
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, r, "missing auth context")
	}
	return p, ok
}

func deviceID(r *http.Request, fromBody string) string {
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-Device-Id"))
}

// geoFromHeaders reads the coarse location an edge proxy attaches.
func geoFromHeaders(r *http.Request) *service.GeoLocation {
	country := strings.TrimSpace(r.Header.Get("X-Geo-Country"))
	if country == "" {
		country = strings.TrimSpace(r.Header.Get("CF-IPCountry"))
	}
	city := strings.TrimSpace(r.Header.Get("X-Geo-City"))
	if country == "" && city == "" {
		return nil
	}
	return &service.GeoLocation{Country: country, City: city}
}
