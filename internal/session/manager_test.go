package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, store Store) (*Manager, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return NewManager("test-secret", store, 15*time.Minute, 24*time.Hour, clock), clock
}

func TestIssueAndVerify(t *testing.T) {
	mgr, _ := newTestManager(t, NewMemoryStore())
	identityID := uuid.New()

	sess, err := mgr.Issue(context.Background(), identityID, "citizen")
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)

	claims, err := mgr.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identityID, claims.IdentityID)
	assert.Equal(t, "citizen", claims.Role)
}

func TestVerify_ExpiredToken(t *testing.T) {
	mgr, clock := newTestManager(t, NewMemoryStore())

	sess, err := mgr.Issue(context.Background(), uuid.New(), "citizen")
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = mgr.Verify(sess.AccessToken)
	assert.Error(t, err)
}

func TestVerify_WrongSecret(t *testing.T) {
	store := NewMemoryStore()
	mgr, _ := newTestManager(t, store)
	other := NewManager("other-secret", store, 15*time.Minute, 24*time.Hour, clockwork.NewRealClock())

	sess, err := other.Issue(context.Background(), uuid.New(), "citizen")
	require.NoError(t, err)

	_, err = mgr.Verify(sess.AccessToken)
	assert.Error(t, err)
}

func TestRefresh_RotatesToken(t *testing.T) {
	mgr, _ := newTestManager(t, NewMemoryStore())
	identityID := uuid.New()

	sess, err := mgr.Issue(context.Background(), identityID, "authority")
	require.NoError(t, err)

	next, err := mgr.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	claims, err := mgr.Verify(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identityID, claims.IdentityID)
	assert.Equal(t, "authority", claims.Role)

	// The old refresh token was revoked by the rotation.
	_, err = mgr.Refresh(context.Background(), sess.RefreshToken)
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	mgr, _ := newTestManager(t, NewMemoryStore())

	sess, err := mgr.Issue(context.Background(), uuid.New(), "citizen")
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(context.Background(), sess.RefreshToken))
	_, err = mgr.Refresh(context.Background(), sess.RefreshToken)
	assert.Error(t, err)

	// Revoking an unknown token is a no-op.
	assert.NoError(t, mgr.Revoke(context.Background(), "nonsense"))
}
