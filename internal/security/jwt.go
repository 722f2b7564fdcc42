package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	TokenType string `json:"token_type"`
	TenantID  string `json:"tid"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type AccessTokenInput struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Role      string
	SessionID uuid.UUID
	TTL       time.Duration
}

type JWTManager struct {
	issuer       string
	audience     string
	accessSecret []byte
	now          func() time.Time
}

func NewJWTManager(issuer, audience, accessSecret string) *JWTManager {
	return &JWTManager{
		issuer:       issuer,
		audience:     audience,
		accessSecret: []byte(accessSecret),
		now:          time.Now,
	}
}

// MintAccessToken signs a tenant-scoped access token. The jti is random so
// two tokens for the same session are distinguishable in logs.
func (m *JWTManager) MintAccessToken(in AccessTokenInput) (string, time.Time, error) {
	if in.UserID == uuid.Nil || in.TenantID == uuid.Nil {
		return "", time.Time{}, errors.New("access token requires user and tenant")
	}
	now := m.now().UTC()
	expiresAt := now.Add(in.TTL)
	claims := Claims{
		TokenType: "access",
		TenantID:  in.TenantID.String(),
		Role:      in.Role,
		SessionID: in.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   in.UserID.String(),
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// MintRefreshToken returns an opaque refresh token. Only its digest is stored.
func (m *JWTManager) MintRefreshToken() (string, error) {
	return NewOpaqueToken()
}

// MintSelectionToken signs a short-lived token that only proves a password
// login for userID. It is exchanged for tenant tokens at context selection
// and is rejected everywhere an access token is expected.
func (m *JWTManager) MintSelectionToken(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	if userID == uuid.Nil {
		return "", time.Time{}, errors.New("selection token requires user")
	}
	now := m.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		TokenType: "context_selection",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, "access")
}

func (m *JWTManager) ParseSelectionToken(raw string) (uuid.UUID, error) {
	claims, err := m.parse(raw, "context_selection")
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID()
}

func (m *JWTManager) parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.accessSecret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}

func (c *Claims) UserID() (uuid.UUID, error) { return uuid.Parse(c.Subject) }

func (c *Claims) Tenant() (uuid.UUID, error) { return uuid.Parse(c.TenantID) }

func (c *Claims) Session() (uuid.UUID, error) { return uuid.Parse(c.SessionID) }
