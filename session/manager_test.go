package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	instructorWallet = interfaces.WalletAddress("0x1234567890abcdef1234567890abcdef12345678")
	studentWallet    = interfaces.WalletAddress("0xabc0000000000000000000000000000000000001")
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", instructorWallet, time.Hour, nil, slog.Default())
	require.NoError(t, err)
	return m
}

func TestManager_IssueParse(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	token, issued, err := m.Issue(studentWallet)
	require.NoError(t, err)
	assert.False(t, issued.IsInstructor)
	assert.NotEmpty(t, issued.ID)

	sess, err := m.Parse(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, studentWallet, sess.Address)
	assert.Equal(t, issued.ID, sess.ID)
	assert.False(t, sess.IsInstructor)

	token, _, err = m.Issue(instructorWallet)
	require.NoError(t, err)
	sess, err = m.Parse(ctx, token)
	require.NoError(t, err)
	assert.True(t, sess.IsInstructor)
}

func TestManager_IsInstructorCaseInsensitive(t *testing.T) {
	m := newTestManager(t)
	assert.True(t, m.IsInstructor("0x1234567890ABCDEF1234567890ABCDEF12345678"))
	assert.False(t, m.IsInstructor(studentWallet))

	noInstructor, err := NewManager("s", "", time.Hour, nil, slog.Default())
	require.NoError(t, err)
	assert.False(t, noInstructor.IsInstructor(""))
}

func TestManager_RejectsInvalidTokens(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Parse(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Parse(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrNoSession)

	other, err := NewManager("other-secret", instructorWallet, time.Hour, nil, slog.Default())
	require.NoError(t, err)
	foreign, _, err := other.Issue(instructorWallet)
	require.NoError(t, err)
	_, err = m.Parse(ctx, foreign)
	assert.ErrorIs(t, err, ErrNoSession)

	// Unsigned tokens are never accepted
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		Wallet: instructorWallet.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(ctx, none)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Expiry(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()
	m.now = func() time.Time { return now }

	token, _, err := m.Issue(studentWallet)
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Revoke(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	token, _, err := m.Issue(studentWallet)
	require.NoError(t, err)
	sess, err := m.Parse(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, sess))
	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)

	// Other sessions of the same wallet are unaffected
	other, _, err := m.Issue(studentWallet)
	require.NoError(t, err)
	_, err = m.Parse(ctx, other)
	assert.NoError(t, err)
}

func TestMemoryRevocationList_Expires(t *testing.T) {
	l := NewMemoryRevocationList()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	l.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, err = l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = l.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
