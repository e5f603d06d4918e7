package ws

import (
	"io"
	"log/slog"
	"testing"

	"truco-fdp-server/apperr"
	"truco-fdp-server/broadcast"
	"truco-fdp-server/config"
	"truco-fdp-server/session"
	"truco-fdp-server/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub(t *testing.T) (*Hub, *session.Manager) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Rooms = []config.RoomDef{{ID: "itajuba", DisplayName: "Itajuba"}}
	cfg.JWTSigningKey = []byte("ws-test-signing-key")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(t.TempDir()+"/snapshot.json", log)
	sessions := session.New(st, cfg, log)
	fanout := broadcast.New(st, cfg, log)
	return NewHub(sessions, fanout, st, cfg, log), sessions
}

func TestStartGameRejectsNonHost(t *testing.T) {
	h, sessions := testHub(t)
	host, err := sessions.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	guest, err := sessions.Join("itajuba", "Beto", false)
	require.NoError(t, err)

	_, err = h.startGame("itajuba", guest.Player.ID)
	assert.Equal(t, apperr.ErrNotHost.Code(), apperr.Code(err))

	_, err = h.startGame("itajuba", host.Player.ID)
	assert.NoError(t, err)
}

func TestStartGameRejectsTooFewPlayers(t *testing.T) {
	h, sessions := testHub(t)
	host, err := sessions.Join("itajuba", "Ana", false)
	require.NoError(t, err)

	_, err = h.startGame("itajuba", host.Player.ID)
	assert.Equal(t, apperr.ErrInsufficientPlayers.Code(), apperr.Code(err))
}

func TestStartGameRejectsWhenAlreadyInProgress(t *testing.T) {
	h, sessions := testHub(t)
	host, err := sessions.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	_, err = sessions.Join("itajuba", "Beto", false)
	require.NoError(t, err)

	_, err = h.startGame("itajuba", host.Player.ID)
	require.NoError(t, err)

	_, err = h.startGame("itajuba", host.Player.ID)
	assert.Equal(t, apperr.ErrRoomInProgress.Code(), apperr.Code(err))
}

func TestGameForRoomReflectsStart(t *testing.T) {
	h, sessions := testHub(t)
	host, err := sessions.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	_, err = sessions.Join("itajuba", "Beto", false)
	require.NoError(t, err)

	_, ok := h.gameForRoom("itajuba")
	assert.False(t, ok)

	_, err = h.startGame("itajuba", host.Player.ID)
	require.NoError(t, err)

	_, ok = h.gameForRoom("itajuba")
	assert.True(t, ok)
}

func TestRoomJoinedPayloadListsSeatedAndSpectators(t *testing.T) {
	h, sessions := testHub(t)
	host, err := sessions.Join("itajuba", "Ana", false)
	require.NoError(t, err)
	_, err = sessions.Join("itajuba", "Beto", true)
	require.NoError(t, err)

	room, ok := h.Store.Room("itajuba")
	require.True(t, ok)

	payload := h.roomJoinedPayload(room, host.Player, host.SessionToken)
	assert.Equal(t, "itajuba", payload["roomId"])
	assert.Equal(t, true, payload["isHost"])

	currentPlayers, ok := payload["currentPlayers"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, currentPlayers, 1)

	spectators, ok := payload["spectators"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, spectators, 1)

	assert.Nil(t, payload["gameState"])
}

func TestNotifyPlayerCountChangedDoesNotBlockWithoutAnActiveGame(t *testing.T) {
	h, _ := testHub(t)
	assert.NotPanics(t, func() {
		h.notifyPlayerCountChanged("itajuba")
	})
}
