package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/tenant-session-core/internal/clientinfo"
	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type inlineRunner struct {
	mu   sync.Mutex
	runs []string
	errs []error
}

func (r *inlineRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	err := fn(context.WithoutCancel(ctx))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, name)
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []notify.EmailMessage
}

func (f *fakeEmailSender) SendTemplate(_ context.Context, msg notify.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type publishedEvent struct {
	eventType string
	key       string
	payload   []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, key: key, payload: payload})
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.eventType)
	}
	return out
}

type testEnv struct {
	db          *gorm.DB
	policy      config.SecurityPolicy
	users       repository.UserRepository
	memberships repository.MembershipRepository
	sessionRepo repository.SessionRepository
	credentials repository.RefreshCredentialRepository
	deviceRepo  repository.DeviceRepository
	eventRepo   repository.SecurityEventRepository
	auditRepo   repository.AuditLogRepository
	hasher      *security.BcryptHasher
	jwt         *security.JWTManager
	ids         security.PrefixedIDCodec
	runner      *inlineRunner
	email       *fakeEmailSender
	publisher   *fakePublisher
	audit       *SecurityAuditService
	tokens      *TokenService
	sessions    *SessionService
	devices     *DeviceService
	auth        *AuthService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPolicy(t, config.DefaultSecurityPolicy())
}

func newTestEnvWithPolicy(t *testing.T, policy config.SecurityPolicy) *testEnv {
	t.Helper()
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		db:          db,
		policy:      policy,
		users:       repository.NewUserRepository(db),
		memberships: repository.NewMembershipRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		credentials: repository.NewRefreshCredentialRepository(db),
		deviceRepo:  repository.NewDeviceRepository(db),
		eventRepo:   repository.NewSecurityEventRepository(db),
		auditRepo:   repository.NewAuditLogRepository(db),
		hasher:      security.NewBcryptHasher(bcrypt.MinCost),
		jwt:         security.NewJWTManager("tenant-session-core-test", "tenant-session-core-test", testJWTSecret),
		ids:         security.NewPrefixedIDCodec(),
		runner:      &inlineRunner{},
		email:       &fakeEmailSender{},
		publisher:   &fakePublisher{},
	}
	digester := security.SHA256Digester{}
	locker := NewInMemoryUserLocker()
	env.audit = NewSecurityAuditService(env.eventRepo, env.auditRepo, env.ids, digester, policy.Audit, logger)
	env.tokens = NewTokenService(env.jwt, env.credentials, digester, policy.Token)
	env.sessions = NewSessionService(env.sessionRepo, env.audit, locker, env.ids, policy.Session, logger)
	env.devices = NewDeviceService(env.deviceRepo, env.users, env.audit, clientinfo.NewUserAgentParser(), env.email, env.runner, locker, env.ids, digester, policy.Device, logger)
	env.auth = NewAuthService(AuthDeps{
		Users:       env.users,
		Memberships: env.memberships,
		Hasher:      env.hasher,
		Tokens:      env.tokens,
		Sessions:    env.sessions,
		Devices:     env.devices,
		Audit:       env.audit,
		Publisher:   env.publisher,
		Email:       env.email,
		Async:       env.runner,
		IDs:         env.ids,
	}, policy.Lockout, logger)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{Email: email, DisplayName: "Test User", PasswordHash: hash, IsActive: true, EmailConfirmed: true}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) seedTenant(t *testing.T, code string) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{ID: uuid.New(), Code: code, Name: "Tenant " + code, IsActive: true}
	if err := e.db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func (e *testEnv) seedRole(t *testing.T, name string) *domain.Role {
	t.Helper()
	role := &domain.Role{ID: uuid.New(), Name: name}
	if err := e.db.Create(role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	return role
}

func (e *testEnv) seedMembership(t *testing.T, userID uuid.UUID, tenant *domain.Tenant, role *domain.Role, grantedAt time.Time) *domain.TenantMembership {
	t.Helper()
	m := &domain.TenantMembership{
		ID:        uuid.New(),
		UserID:    userID,
		TenantID:  tenant.ID,
		IsActive:  true,
		GrantedAt: grantedAt,
	}
	if role != nil {
		m.RoleID = &role.ID
	}
	if err := e.db.Create(m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return m
}

func (e *testEnv) countAuditLogs(t *testing.T, event domain.AuditEvent, result domain.AuditResult) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&domain.AuditLog{}).Where("event = ? AND result = ?", event, result).Count(&n).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return n
}

func (e *testEnv) countEvents(t *testing.T, eventType domain.SecurityEventType) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&domain.SecurityEvent{}).Where("event_type = ?", eventType).Count(&n).Error; err != nil {
		t.Fatalf("count security events: %v", err)
	}
	return n
}

func (e *testEnv) liveSessions(t *testing.T, userID uuid.UUID) []domain.Session {
	t.Helper()
	sessions, err := e.sessionRepo.ListActiveByUserID(context.Background(), userID, time.Now().UTC())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	return sessions
}
