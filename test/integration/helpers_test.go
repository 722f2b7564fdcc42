package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sandeepkv93/tenant-session-core/internal/app"
	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/database"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const (
	testPassword = "Valid#Pass1234"
	testUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type authTestServerOptions struct {
	cfgOverride func(cfg *config.Config)
}

type testServer struct {
	baseURL string
	client  *http.Client
	db      *gorm.DB
	cfg     *config.Config
}

// newTestServer wires the full application against a private in-memory
// sqlite database. The returned db shares that database for seeding and
// assertions.
func newTestServer(t *testing.T, opts authTestServerOptions) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.DatabaseURL = fmt.Sprintf("file:itest_%s?mode=memory&cache=shared", uuid.NewString())
	cfg.JWTAccessSecret = "integration-test-secret-0123456789abcdef"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.AuthRateLimitRPM = 1000
	cfg.APIRateLimitRPM = 1000
	cfg.LogLevel = "error"
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, cleanup, err := app.InitializeApp(cfg, logger, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	ts := httptest.NewServer(a.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		a.Dispatcher.Wait()
		cleanup()
		_ = database.Close(db)
	})
	return &testServer{baseURL: ts.URL, client: ts.Client(), db: db, cfg: cfg}
}

func (s *testServer) seedUser(t *testing.T, email string) *domain.User {
	t.Helper()
	hash, err := security.NewBcryptHasher(bcrypt.MinCost).Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{ID: uuid.New(), Email: email, DisplayName: "Integration User", PasswordHash: hash, IsActive: true, EmailConfirmed: true}
	if err := s.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (s *testServer) seedMembership(t *testing.T, userID uuid.UUID, code, roleName string) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{ID: uuid.New(), Code: code, Name: "Tenant " + code, IsActive: true}
	if err := s.db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	s.addMembership(t, userID, tenant.ID, roleName)
	return tenant
}

func (s *testServer) addMembership(t *testing.T, userID, tenantID uuid.UUID, roleName string) {
	t.Helper()
	role := domain.Role{ID: uuid.New(), Name: roleName}
	if err := s.db.Where(domain.Role{Name: roleName}).FirstOrCreate(&role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	m := &domain.TenantMembership{ID: uuid.New(), UserID: userID, TenantID: tenantID, RoleID: &role.ID, IsActive: true, GrantedAt: time.Now().UTC()}
	if err := s.db.Create(m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
}

func (s *testServer) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("User-Agent", testUA)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var env apiEnvelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope (status %d): %v", resp.StatusCode, err)
		}
	}
	return resp, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

type contextTokens struct {
	TenantID     string `json:"tenant_id"`
	RoleName     string `json:"role_name"`
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type loginData struct {
	UserID                   string `json:"user_id"`
	RequiresContextSelection bool   `json:"requires_context_selection"`
	AvailableContexts        []struct {
		TenantID   string `json:"tenant_id"`
		TenantCode string `json:"tenant_code"`
	} `json:"available_contexts"`
	Tokens         *contextTokens `json:"tokens"`
	SelectionToken string         `json:"selection_token"`
}

func login(t *testing.T, srv *testServer, email, deviceID string) (*http.Response, loginData) {
	t.Helper()
	resp, env := doJSON(t, srv.client, http.MethodPost, srv.baseURL+"/api/v1/auth/login",
		map[string]string{"email": email, "password": testPassword, "device_id": deviceID}, nil)
	var data loginData
	if env.Success {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode login: %v", err)
		}
	}
	return resp, data
}

// loginSingleTenant logs in a user with exactly one membership and returns
// the auto-selected tokens.
func loginSingleTenant(t *testing.T, srv *testServer, email, deviceID string) contextTokens {
	t.Helper()
	resp, data := login(t, srv, email, deviceID)
	if resp.StatusCode != http.StatusOK || data.Tokens == nil {
		t.Fatalf("login failed: status=%d data=%+v", resp.StatusCode, data)
	}
	return *data.Tokens
}
