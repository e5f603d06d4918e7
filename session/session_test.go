package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"truco-fdp-server/config"
	"truco-fdp-server/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.Defaults()
	cfg.JWTSigningKey = []byte("test-signing-key")
	st := store.New(t.TempDir()+"/snapshot.json", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(st, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJoinSeatsFirstPlayerAsHost(t *testing.T) {
	m := testManager(t)
	res, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	assert.False(t, res.Player.IsSpectator)
	assert.True(t, res.Player.IsHost)
	assert.NotEmpty(t, res.SessionToken)
}

func TestJoinRejectsUnknownRoom(t *testing.T) {
	m := testManager(t)
	_, err := m.Join("nowhere", "Ana", false)
	require.Error(t, err)
}

func TestJoinRejectsInvalidName(t *testing.T) {
	m := testManager(t)
	_, err := m.Join("itajuba", "A!", false)
	require.Error(t, err)
}

func TestJoinRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	m := testManager(t)
	_, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	_, err = m.Join("itajuba", "ANA", false)
	require.Error(t, err)
}

func TestJoinRejectsOverCapacity(t *testing.T) {
	m := testManager(t)
	for i := 0; i < 10; i++ {
		_, err := m.Join("itajuba", string(rune('A'+i))+"aaa", false)
		require.NoError(t, err)
	}
	_, err := m.Join("itajuba", "Overflow", false)
	require.Error(t, err)
}

func TestDisconnectAndReconnect(t *testing.T) {
	m := testManager(t)
	res, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(res.SessionToken))
	p, _ := m.st.Player(res.Player.ID)
	assert.Equal(t, store.Disconnected, p.ConnectionStatus)

	rr, err := m.Reconnect(res.SessionToken, "conn-2")
	require.NoError(t, err)
	assert.Equal(t, store.Connected, rr.Player.ConnectionStatus)
	assert.Equal(t, "conn-2", rr.Player.TransportID)
}

func TestReconnectAfterExpiryRemovesPlayer(t *testing.T) {
	m := testManager(t)
	res, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(res.SessionToken))

	sess, _ := m.st.Session(res.SessionToken)
	expired := time.Now().Add(-time.Second)
	sess.ExpiresAt = &expired
	m.st.PutSession(sess)

	_, err = m.Reconnect(res.SessionToken, "conn-2")
	require.Error(t, err)
	_, ok := m.st.Player(res.Player.ID)
	assert.False(t, ok)
}

func TestReconnectWithForgedTokenFails(t *testing.T) {
	m := testManager(t)
	_, err := m.Reconnect("not-a-real-token", "conn")
	require.Error(t, err)
}

func TestHostReelectionOnHostLeave(t *testing.T) {
	m := testManager(t)
	host, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	second, err := m.Join("itajuba", "Beto", false)
	require.NoError(t, err)
	assert.True(t, host.Player.IsHost)

	require.NoError(t, m.Leave(host.SessionToken))

	p, ok := m.st.Player(second.Player.ID)
	require.True(t, ok)
	assert.True(t, p.IsHost)
}

func TestSweepExpiredRemovesStaleSessions(t *testing.T) {
	m := testManager(t)
	res, err := m.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(res.SessionToken))

	sess, _ := m.st.Session(res.SessionToken)
	expired := time.Now().Add(-time.Second)
	sess.ExpiresAt = &expired
	m.st.PutSession(sess)

	removed := m.SweepExpired()
	require.Len(t, removed, 1)
	assert.Equal(t, res.Player.ID, removed[0].PlayerID)
}
