package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/domain"
)

func newSession(userID uuid.UUID, expiresAt, lastActivity time.Time) *domain.Session {
	return &domain.Session{
		UserID:         userID,
		TenantID:       uuid.New(),
		SessionToken:   uuid.NewString(),
		SessionType:    domain.SessionTypeNormal,
		LastActivityAt: lastActivity,
		ExpiresAt:      expiresAt,
	}
}

func TestSessionRepositoryListActiveByUserID(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))
	now := time.Now().UTC()
	userID := uuid.New()

	active := newSession(userID, now.Add(2*time.Hour), now)
	revokedAt := now
	revoked := newSession(userID, now.Add(2*time.Hour), now)
	revoked.RevokedAt = &revokedAt
	expired := newSession(userID, now.Add(-time.Hour), now)
	otherUser := newSession(uuid.New(), now.Add(2*time.Hour), now)

	for _, s := range []*domain.Session{active, revoked, expired, otherUser} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	sessions, err := repo.ListActiveByUserID(ctx, userID, now)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != active.ID {
		t.Fatalf("expected only the active session, got %+v", sessions)
	}
}

func TestSessionRepositoryRevokeScopeByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))
	now := time.Now().UTC()
	u1, u2 := uuid.New(), uuid.New()

	s1 := newSession(u1, now.Add(2*time.Hour), now)
	s2 := newSession(u2, now.Add(2*time.Hour), now)
	if err := repo.Create(ctx, s1); err != nil {
		t.Fatalf("create s1: %v", err)
	}
	if err := repo.Create(ctx, s2); err != nil {
		t.Fatalf("create s2: %v", err)
	}

	if _, err := repo.RevokeByIDForUser(ctx, u1, s2.ID, "manual"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found when revoking another user's session, got %v", err)
	}

	changed, err := repo.RevokeByIDForUser(ctx, u2, s2.ID, "manual")
	if err != nil {
		t.Fatalf("revoke owned session: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true on first revoke")
	}
	first, err := repo.FindByID(ctx, s2.ID)
	if err != nil {
		t.Fatalf("find revoked: %v", err)
	}

	changed, err = repo.RevokeByIDForUser(ctx, u2, s2.ID, "other_reason")
	if err != nil {
		t.Fatalf("idempotent revoke: %v", err)
	}
	if changed {
		t.Fatal("expected changed=false on already revoked session")
	}
	second, err := repo.FindByID(ctx, s2.ID)
	if err != nil {
		t.Fatalf("find revoked again: %v", err)
	}
	if !second.RevokedAt.Equal(*first.RevokedAt) || *second.RevokedReason != "manual" {
		t.Fatalf("revocation must be immutable: first=%v/%v second=%v/%v", first.RevokedAt, *first.RevokedReason, second.RevokedAt, *second.RevokedReason)
	}

	n, err := repo.RevokeOthersByUser(ctx, u1, s1.ID, "revoke_others")
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 revoked for user with one kept session, got %d", n)
	}
}

func TestSessionRepositoryRevokeAlsoRevokesRefreshCredential(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	sessions := NewSessionRepository(db)
	credentials := NewRefreshCredentialRepository(db)
	now := time.Now().UTC()
	userID := uuid.New()

	cred := &domain.RefreshCredential{UserID: userID, TenantID: uuid.New(), TokenHash: "hash-1", ExpiresAt: now.Add(24 * time.Hour)}
	if err := credentials.Create(ctx, cred); err != nil {
		t.Fatalf("create credential: %v", err)
	}
	s := newSession(userID, now.Add(time.Hour), now)
	s.RefreshCredentialID = &cred.ID
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("create session: %v", err)
	}

	n, err := sessions.RevokeByUserID(ctx, userID, "logout_all")
	if err != nil {
		t.Fatalf("revoke by user: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}
	got, err := credentials.FindByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("find credential: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatal("expected refresh credential to be revoked with its session")
	}
}

func TestSessionRepositoryListLiveByActivityAndRevokeExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))
	now := time.Now().UTC()
	userID := uuid.New()

	newest := newSession(userID, now.Add(time.Hour), now.Add(-time.Minute))
	oldest := newSession(userID, now.Add(time.Hour), now.Add(-time.Hour))
	middle := newSession(userID, now.Add(time.Hour), now.Add(-30*time.Minute))
	stale := newSession(userID, now.Add(-time.Second), now.Add(-2*time.Hour))
	for _, s := range []*domain.Session{newest, oldest, middle, stale} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	live, err := repo.ListLiveByActivity(ctx, userID, now)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 3 || live[0].ID != oldest.ID || live[1].ID != middle.ID || live[2].ID != newest.ID {
		t.Fatalf("unexpected activity ordering: %+v", live)
	}

	n, err := repo.RevokeExpired(ctx, now, "expired")
	if err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired session revoked, got %d", n)
	}
	got, err := repo.FindByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if got.RevokedAt == nil || *got.RevokedReason != "expired" {
		t.Fatalf("expected stale session revoked as expired, got %+v", got)
	}
	n, err = repo.RevokeExpired(ctx, now, "expired")
	if err != nil {
		t.Fatalf("second revoke expired: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cleanup to be idempotent, got %d", n)
	}
}

func TestSessionRepositoryTouchActivitySkipsRevoked(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))
	now := time.Now().UTC()
	s := newSession(uuid.New(), now.Add(time.Hour), now.Add(-time.Hour))
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	touched, err := repo.TouchActivity(ctx, s.ID, now)
	if err != nil || !touched {
		t.Fatalf("expected touch on live session, touched=%v err=%v", touched, err)
	}
	if _, err := repo.RevokeByID(ctx, s.ID, "manual"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	touched, err = repo.TouchActivity(ctx, s.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("touch revoked: %v", err)
	}
	if touched {
		t.Fatal("expected no activity update on revoked session")
	}
}
