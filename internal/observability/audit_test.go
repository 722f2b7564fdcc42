package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestAuditLevelFollowsOutcome(t *testing.T) {
	buf := captureDefaultLogger(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-9")

	Audit(req, "auth.login", "failure", "INVALID_CREDENTIALS", "user_id", "usr_x")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["level"] != "WARN" || line["event"] != "auth.login" || line["reason"] != "INVALID_CREDENTIALS" || line["user_id"] != "usr_x" {
		t.Fatalf("unexpected audit line %+v", line)
	}
	httpGroup, _ := line["http"].(map[string]any)
	if httpGroup["request_id"] != "req-9" || httpGroup["path"] != "/api/v1/auth/login" {
		t.Fatalf("unexpected http group %+v", httpGroup)
	}
}

func TestAuditSuccessOmitsEmptyReason(t *testing.T) {
	buf := captureDefaultLogger(t)
	Audit(httptest.NewRequest(http.MethodGet, "/", nil), "device.trusted", "success", "")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "INFO" {
		t.Fatalf("expected info level, got %v", line["level"])
	}
	if _, ok := line["reason"]; ok {
		t.Fatal("empty reason must be omitted")
	}
}

func TestRuntimeShutdownNilSafe(t *testing.T) {
	var r *Runtime
	if err := r.Shutdown(t.Context()); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
	if err := (&Runtime{}).Shutdown(t.Context()); err != nil {
		t.Fatalf("empty runtime shutdown: %v", err)
	}
}
