package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testAccessSecret = "abcdefghijklmnopqrstuvwxyz123456"

func TestJWTManagerAccessTokenRoundTripCarriesTenantContext(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", testAccessSecret)
	in := AccessTokenInput{
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		Role:      "Owner",
		SessionID: uuid.New(),
		TTL:       15 * time.Minute,
	}

	token, expiresAt, err := mgr.MintAccessToken(in)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if time.Until(expiresAt) <= 14*time.Minute {
		t.Fatalf("unexpected expiry: %s", expiresAt)
	}
	claims, err := mgr.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil || userID != in.UserID {
		t.Fatalf("subject mismatch: %v %v", userID, err)
	}
	tenantID, err := claims.Tenant()
	if err != nil || tenantID != in.TenantID {
		t.Fatalf("tenant mismatch: %v %v", tenantID, err)
	}
	sessionID, err := claims.Session()
	if err != nil || sessionID != in.SessionID {
		t.Fatalf("session mismatch: %v %v", sessionID, err)
	}
	if claims.Role != "Owner" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", testAccessSecret)
	other := NewJWTManager("iss", "other-aud", testAccessSecret)
	in := AccessTokenInput{UserID: uuid.New(), TenantID: uuid.New(), SessionID: uuid.New(), TTL: time.Minute}

	foreign, _, err := other.MintAccessToken(in)
	if err != nil {
		t.Fatalf("mint foreign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(foreign); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}

	past := NewJWTManager("iss", "aud", testAccessSecret)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := past.MintAccessToken(in)
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	if _, err := mgr.ParseAccessToken(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenType: "access"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expected unsigned token to fail")
	}
}

func TestJWTManagerRequiresTenant(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", testAccessSecret)
	if _, _, err := mgr.MintAccessToken(AccessTokenInput{UserID: uuid.New(), TTL: time.Minute}); err == nil {
		t.Fatal("expected missing tenant to fail")
	}
}

func TestOpaqueTokensAreDistinct(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", testAccessSecret)
	a, err := mgr.MintRefreshToken()
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	b, err := mgr.MintRefreshToken()
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	if a == b || len(a) < 40 || strings.ContainsAny(a, "+/=") {
		t.Fatalf("unexpected refresh tokens: %q %q", a, b)
	}
	if NewSessionToken() == NewSessionToken() {
		t.Fatal("expected unique session tokens")
	}
}

func TestJWTManagerSelectionTokenIsNotAnAccessToken(t *testing.T) {
	mgr := NewJWTManager("iss", "aud", testAccessSecret)
	userID := uuid.New()

	token, expiresAt, err := mgr.MintSelectionToken(userID, 5*time.Minute)
	if err != nil {
		t.Fatalf("mint selection: %v", err)
	}
	if time.Until(expiresAt) > 5*time.Minute {
		t.Fatalf("unexpected expiry: %s", expiresAt)
	}
	got, err := mgr.ParseSelectionToken(token)
	if err != nil || got != userID {
		t.Fatalf("expected selection subject %s, got %s (%v)", userID, got, err)
	}
	if _, err := mgr.ParseAccessToken(token); err == nil {
		t.Fatal("expected selection token rejected as access token")
	}

	access, _, err := mgr.MintAccessToken(AccessTokenInput{UserID: userID, TenantID: uuid.New(), SessionID: uuid.New(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("mint access: %v", err)
	}
	if _, err := mgr.ParseSelectionToken(access); err == nil {
		t.Fatal("expected access token rejected as selection token")
	}
}
