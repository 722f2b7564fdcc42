package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

func TestSingleTenantLoginSelectsContextAutomatically(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "solo@example.com")
	srv.seedMembership(t, user.ID, "acme", "Owner")

	resp, data := login(t, srv, "Solo@Example.com", "laptop-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if data.RequiresContextSelection || data.Tokens == nil {
		t.Fatalf("expected automatic context selection, got %+v", data)
	}
	if data.SelectionToken != "" {
		t.Fatal("single-tenant login must not mint a selection token")
	}
	if data.Tokens.RoleName != "Owner" || data.Tokens.AccessToken == "" || data.Tokens.RefreshToken == "" {
		t.Fatalf("unexpected tokens: %+v", data.Tokens)
	}

	resp, env := doJSON(t, srv.client, http.MethodGet, srv.baseURL+"/api/v1/me", nil, bearer(data.Tokens.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /me, got %d", resp.StatusCode)
	}
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.User.Email != "solo@example.com" || me.Role != "Owner" {
		t.Fatalf("unexpected profile %+v", me)
	}

	if got := srv.count(t, &domain.Session{}, "user_id = ? AND revoked_at IS NULL", user.ID); got != 1 {
		t.Fatalf("expected one live session, got %d", got)
	}
	if got := srv.count(t, &domain.UserDevice{}, "user_id = ?", user.ID); got != 1 {
		t.Fatalf("expected one registered device, got %d", got)
	}
	if got := srv.count(t, &domain.SecurityEvent{}, "event_type = ?", domain.EventLoginSuccess); got != 1 {
		t.Fatalf("expected one LoginSuccess event, got %d", got)
	}
}

func TestMultiTenantLoginRequiresSelectionToken(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "multi@example.com")
	srv.seedMembership(t, user.ID, "alpha", "Owner")
	srv.seedMembership(t, user.ID, "beta", "Member")

	resp, data := login(t, srv, "multi@example.com", "laptop-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !data.RequiresContextSelection || data.Tokens != nil || len(data.AvailableContexts) != 2 {
		t.Fatalf("expected context selection with two contexts, got %+v", data)
	}
	if data.SelectionToken == "" {
		t.Fatal("expected selection token")
	}
	if got := srv.count(t, &domain.Session{}, "user_id = ?", user.ID); got != 0 {
		t.Fatalf("no session may exist before context selection, got %d", got)
	}

	var beta string
	for _, c := range data.AvailableContexts {
		if c.TenantCode == "beta" {
			beta = c.TenantID
		}
	}

	t.Run("missing selection token is rejected", func(t *testing.T) {
		resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/select-context",
			map[string]string{"tenant_id": beta}, nil)
		if resp.StatusCode != http.StatusUnauthorized || env.Success {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("access token is not a selection token", func(t *testing.T) {
		other := srv.seedUser(t, "other@example.com")
		srv.seedMembership(t, other.ID, "gamma", "Owner")
		tokens := loginSingleTenant(t, srv, "other@example.com", "phone-1")
		resp, _ := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/select-context",
			map[string]string{"selection_token": tokens.AccessToken, "tenant_id": beta}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("malformed tenant id is rejected", func(t *testing.T) {
		resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/select-context",
			map[string]string{"selection_token": data.SelectionToken, "tenant_id": "not-a-public-id"}, nil)
		if resp.StatusCode != http.StatusBadRequest || env.Success {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("selection of a foreign tenant fails", func(t *testing.T) {
		stranger := srv.seedUser(t, "stranger@example.com")
		srv.seedMembership(t, stranger.ID, "delta", "Owner")
		foreign := loginSingleTenant(t, srv, "stranger@example.com", "desktop-1")
		resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/select-context",
			map[string]string{"selection_token": data.SelectionToken, "tenant_id": foreign.TenantID}, nil)
		if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_CONTEXT" {
			t.Fatalf("expected 400 INVALID_CONTEXT, got %d", resp.StatusCode)
		}
		if got := srv.count(t, &domain.SecurityEvent{}, "event_type = ? AND user_id = ?", domain.EventContextSelectionFailed, user.ID); got != 1 {
			t.Fatalf("expected one ContextSelectionFailed event, got %d", got)
		}
	})

	t.Run("valid selection issues tenant tokens", func(t *testing.T) {
		resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/select-context",
			map[string]string{"selection_token": data.SelectionToken, "tenant_id": beta, "device_id": "laptop-1"}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d (%+v)", resp.StatusCode, env.Error)
		}
		var tokens contextTokens
		if err := json.Unmarshal(env.Data, &tokens); err != nil {
			t.Fatalf("decode tokens: %v", err)
		}
		if tokens.TenantID != beta || tokens.RoleName != "Member" {
			t.Fatalf("unexpected context tokens: %+v", tokens)
		}
		if got := srv.count(t, &domain.SecurityEvent{}, "event_type = ?", domain.EventContextSelected); got < 1 {
			t.Fatalf("expected ContextSelected event, got %d", got)
		}
	})
}

func TestRepeatedFailuresLockAccount(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "locked@example.com")
	srv.seedMembership(t, user.ID, "acme", "Owner")

	wrong := map[string]string{"email": "locked@example.com", "password": "wrong-password"}
	for i := 0; i < srv.cfg.Security.Lockout.MaxFailedAttempts; i++ {
		resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/login", wrong, nil)
		if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("attempt %d: expected 401 INVALID_CREDENTIALS, got %d", i+1, resp.StatusCode)
		}
	}

	resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/login",
		map[string]string{"email": "locked@example.com", "password": testPassword}, nil)
	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("expected 423 after lockout, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "USER_LOCKED" {
		t.Fatalf("expected USER_LOCKED, got %+v", env.Error)
	}
	if _, ok := env.Error.Details["locked_until"]; !ok {
		t.Fatalf("expected locked_until detail, got %+v", env.Error.Details)
	}

	if got := srv.count(t, &domain.SecurityEvent{}, "event_type = ? AND user_id = ?", domain.EventLoginFailed, user.ID); got != int64(srv.cfg.Security.Lockout.MaxFailedAttempts)+1 {
		t.Fatalf("expected every failure to be recorded, got %d", got)
	}
}

func TestUnknownEmailIsIndistinguishableFromWrongPassword(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "known@example.com")
	srv.seedMembership(t, user.ID, "acme", "Owner")

	unknownResp, unknownEnv := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/login",
		map[string]string{"email": "ghost@example.com", "password": testPassword}, nil)
	wrongResp, wrongEnv := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/login",
		map[string]string{"email": "known@example.com", "password": "nope-nope-nope"}, nil)

	if unknownResp.StatusCode != wrongResp.StatusCode {
		t.Fatalf("status differs: %d vs %d", unknownResp.StatusCode, wrongResp.StatusCode)
	}
	if unknownEnv.Error.Code != wrongEnv.Error.Code || unknownEnv.Error.Message != wrongEnv.Error.Message {
		t.Fatalf("error differs: %+v vs %+v", unknownEnv.Error, wrongEnv.Error)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "bye@example.com")
	srv.seedMembership(t, user.ID, "acme", "Owner")
	tokens := loginSingleTenant(t, srv, "bye@example.com", "laptop-1")

	resp, _ := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/logout", nil, bearer(tokens.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", resp.StatusCode)
	}

	resp, env := doJSON(t, srv.client, http.MethodGet, srv.baseURL+"/api/v1/me", nil, bearer(tokens.AccessToken))
	if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "SESSION_INVALID" {
		t.Fatalf("expected 401 SESSION_INVALID after logout, got %d", resp.StatusCode)
	}
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	srv := newTestServer(t, authTestServerOptions{})
	user := srv.seedUser(t, "rotate@example.com")
	srv.seedMembership(t, user.ID, "acme", "Owner")
	first := loginSingleTenant(t, srv, "rotate@example.com", "laptop-1")
	second := loginSingleTenant(t, srv, "rotate@example.com", "phone-1")

	resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/change-password",
		map[string]string{"current_password": testPassword, "new_password": "Another#Pass5678"}, bearer(second.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", resp.StatusCode, env.Error)
	}

	if resp, _ := doJSON(t, srv.client, http.MethodGet, srv.baseURL+"/api/v1/me", nil, bearer(second.AccessToken)); resp.StatusCode != http.StatusOK {
		t.Fatalf("current session must survive, got %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, srv.client, http.MethodGet, srv.baseURL+"/api/v1/me", nil, bearer(first.AccessToken)); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("other session must be revoked, got %d", resp.StatusCode)
	}
}
