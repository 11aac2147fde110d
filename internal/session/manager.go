// Package session tracks authenticated identities: short-lived JWT
// access tokens plus revocable refresh sessions held in Redis (or in
// memory for tests and single-node development).
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store persists refresh sessions keyed by token hash.
type Store interface {
	SaveRefresh(ctx context.Context, tokenHash string, identityID uuid.UUID, role string, expiresAt time.Time) error
	LookupRefresh(ctx context.Context, tokenHash string) (uuid.UUID, string, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
}

// Claims are what an access token asserts about the caller.
type Claims struct {
	IdentityID uuid.UUID
	Role       string
}

// Session is the pair of tokens issued at login.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Manager issues and verifies sessions.
type Manager struct {
	secret     []byte
	store      Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
}

// NewManager creates a session manager.
func NewManager(secret string, store Store, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *Manager {
	return &Manager{
		secret:     []byte(secret),
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

// Issue creates a new session for an identity.
func (m *Manager) Issue(ctx context.Context, identityID uuid.UUID, role string) (Session, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  identityID.String(),
		"role": role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	if err := m.store.SaveRefresh(ctx, hashToken(refresh), identityID, role, now.Add(m.refreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{AccessToken: signed, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// Verify parses an access token and returns its claims.
func (m *Manager) Verify(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now))
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("invalid or expired token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("malformed claims")
	}
	sub, _ := mapClaims["sub"].(string)
	role, _ := mapClaims["role"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, fmt.Errorf("malformed subject: %w", err)
	}
	return Claims{IdentityID: id, Role: role}, nil
}

// Refresh exchanges a refresh token for a new session and rotates the
// refresh token.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	hash := hashToken(refreshToken)
	identityID, role, err := m.store.LookupRefresh(ctx, hash)
	if err != nil {
		return Session{}, fmt.Errorf("refresh session: %w", err)
	}
	if err := m.store.RevokeRefresh(ctx, hash); err != nil {
		return Session{}, fmt.Errorf("rotate refresh session: %w", err)
	}
	return m.Issue(ctx, identityID, role)
}

// Revoke invalidates a refresh token. Revoking an unknown token is a
// no-op.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	return m.store.RevokeRefresh(ctx, hashToken(refreshToken))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
