package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ruteri/campuscred-backend/interfaces"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "campuscred"
)

// ErrNoSession is returned for missing, invalid, expired or revoked tokens.
var ErrNoSession = errors.New("no wallet session")

// Session is a wallet bound to a client.
type Session struct {
	ID           string
	Address      interfaces.WalletAddress
	IsInstructor bool
	ExpiresAt    time.Time
}

type tokenClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// Manager issues and validates session tokens.
type Manager struct {
	signingKey  []byte
	instructor  interfaces.WalletAddress
	ttl         time.Duration
	revocations RevocationList
	now         func() time.Time
	log         *slog.Logger
}

// NewManager creates a session manager. An empty secret generates a random
// per-process key, so sessions do not survive restarts.
func NewManager(secret string, instructor interfaces.WalletAddress, ttl time.Duration, revocations RevocationList, log *slog.Logger) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
		log.Warn("No session secret configured, using an ephemeral key")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if revocations == nil {
		revocations = NewMemoryRevocationList()
	}
	return &Manager{
		signingKey:  key,
		instructor:  instructor,
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
		log:         log,
	}, nil
}

// IsInstructor reports whether addr is the configured instructor wallet.
func (m *Manager) IsInstructor(addr interfaces.WalletAddress) bool {
	return m.instructor.Equal(addr.String())
}

// TTL returns the lifetime of issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a signed session token for addr.
func (m *Manager) Issue(addr interfaces.WalletAddress) (string, *Session, error) {
	now := m.now()
	sess := &Session{
		ID:           uuid.NewString(),
		Address:      addr,
		IsInstructor: m.IsInstructor(addr),
		ExpiresAt:    now.Add(m.ttl).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Wallet: addr.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        sess.ID,
		},
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, sess, nil
}

// Parse validates a session token and returns its session.
func (m *Manager) Parse(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrNoSession
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrNoSession
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, ErrNoSession
	}
	addr, err := interfaces.ParseWalletAddress(claims.Wallet)
	if err != nil {
		return nil, ErrNoSession
	}

	revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		m.log.Error("Session revocation check failed", "err", err)
		return nil, ErrNoSession
	}
	if revoked {
		return nil, ErrNoSession
	}

	return &Session{
		ID:           claims.ID,
		Address:      addr,
		IsInstructor: m.IsInstructor(addr),
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates a session until its expiry.
func (m *Manager) Revoke(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	return m.revocations.Revoke(ctx, sess.ID, sess.ExpiresAt.Sub(m.now()))
}
