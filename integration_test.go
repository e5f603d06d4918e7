package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"truco-fdp-server/api"
	"truco-fdp-server/broadcast"
	"truco-fdp-server/config"
	"truco-fdp-server/session"
	"truco-fdp-server/store"
	"truco-fdp-server/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer wires the full stack (store, session, broadcast, ws) over
// an httptest.Server, mirroring the dependency graph main() builds.
func testServer(t *testing.T, cfg *config.Config) (*httptest.Server, func()) {
	t.Helper()

	cfg.JWTSigningKey = []byte("integration-test-signing-key")
	log := testLogger()

	st := store.New(t.TempDir()+"/snapshot.json", log)
	sessions := session.New(st, cfg, log)
	fanout := broadcast.New(st, cfg, log)
	hub := ws.NewHub(sessions, fanout, st, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	apiHandler := api.NewHandler(cfg, st)
	mux.HandleFunc("/api/rooms", apiHandler.Rooms)
	mux.HandleFunc("/api/rooms/", apiHandler.RoomDetail)
	mux.HandleFunc("/api/health", apiHandler.Health)

	server := httptest.NewServer(mux)
	return server, func() {
		cancel()
		server.Close()
	}
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Rooms = []config.RoomDef{{ID: "itajuba", DisplayName: "Itajuba"}}
	cfg.TrickStartDelayMS = 20
	cfg.HostSettingsDefaults.RoundTransitionDelayMS = 10
	cfg.HostSettingsDefaults.TurnTimerSeconds = cfg.TurnTimerMinSec
	cfg.SessionGraceSec = 2
	cfg.SessionSweepIntervalSec = 1
	return cfg
}

// wsClient is a thin helper over a raw websocket connection for
// sending intents and reading the next typed envelope.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, server *httptest.Server) *wsClient {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(intentType string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["type"] = intentType
	data, err := json.Marshal(fields)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

// next reads the next inbound envelope, unmarshalling it into dst if
// non-nil, and returns its "type" field.
func (c *wsClient) next(dst any) string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var envelope map[string]any
	require.NoError(c.t, json.Unmarshal(data, &envelope))
	if dst != nil {
		require.NoError(c.t, json.Unmarshal(data, dst))
	}
	t, _ := envelope["type"].(string)
	return t
}

// untilType drains messages until one of the given types is seen,
// returning that type's raw payload unmarshalled into dst.
func (c *wsClient) untilType(dst any, wantTypes ...string) string {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err)
		var envelope map[string]any
		require.NoError(c.t, json.Unmarshal(data, &envelope))
		got, _ := envelope["type"].(string)
		for _, want := range wantTypes {
			if got == want {
				if dst != nil {
					require.NoError(c.t, json.Unmarshal(data, dst))
				}
				return got
			}
		}
	}
	c.t.Fatalf("did not observe any of %v within 20 messages", wantTypes)
	return ""
}

func TestTwoPlayersJoinAndStartGame(t *testing.T) {
	server, cleanup := testServer(t, testConfig())
	defer cleanup()

	a := dialWS(t, server)
	defer a.conn.Close()
	a.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Ana"})
	var joinedA struct {
		IsHost bool   `json:"isHost"`
		RoomID string `json:"roomId"`
	}
	require.Equal(t, "room_joined", a.next(&joinedA))
	require.True(t, joinedA.IsHost)

	b := dialWS(t, server)
	defer b.conn.Close()
	b.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Beto"})
	var joinedB struct {
		IsHost bool `json:"isHost"`
	}
	require.Equal(t, "room_joined", b.next(&joinedB))
	require.False(t, joinedB.IsHost)

	require.Equal(t, "player_joined", a.untilType(nil, "player_joined"))

	a.send("start_game", nil)
	require.Equal(t, "game_started", a.untilType(nil, "game_started"))
	require.Equal(t, "game_started", b.untilType(nil, "game_started"))

	var dealtA struct {
		Hand []map[string]any `json:"hand"`
	}
	require.Equal(t, "cards_dealt", a.untilType(&dealtA, "cards_dealt"))
	require.Len(t, dealtA.Hand, 1)
}

// TestDuplicateBidRejected exercises the action_error path end to end:
// the last-bidder restriction itself (spec.md §8 scenario 4) is
// covered at the engine level by TestBiddingRejectsLastBidderRestriction,
// since round 1 is always a blind round and the restriction only
// applies from round 2 onward.
func TestDuplicateBidRejected(t *testing.T) {
	server, cleanup := testServer(t, testConfig())
	defer cleanup()

	a := dialWS(t, server)
	defer a.conn.Close()
	a.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Ana"})
	a.next(nil)

	b := dialWS(t, server)
	defer b.conn.Close()
	b.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Beto"})
	b.next(nil)
	a.untilType(nil, "player_joined")

	a.send("start_game", nil)
	a.untilType(nil, "game_started")
	b.untilType(nil, "game_started")
	a.untilType(nil, "cards_dealt")
	b.untilType(nil, "cards_dealt")

	a.untilType(nil, "bidding_turn")
	b.untilType(nil, "bidding_turn")

	a.send("submit_bid", map[string]any{"bid": 0})
	a.untilType(nil, "bid_submitted")
	b.untilType(nil, "bid_submitted")

	a.send("submit_bid", map[string]any{"bid": 0})
	var errPayload struct {
		Error string `json:"error"`
	}
	require.Equal(t, "action_error", a.untilType(&errPayload, "action_error"))
}

func TestReconnectMidBid(t *testing.T) {
	server, cleanup := testServer(t, testConfig())
	defer cleanup()

	a := dialWS(t, server)
	defer a.conn.Close()
	a.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Ana"})
	a.next(nil)

	b := dialWS(t, server)
	b.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Beto"})
	var joinedB struct {
		SessionID string `json:"sessionId"`
	}
	b.next(&joinedB)
	require.NotEmpty(t, joinedB.SessionID)
	a.untilType(nil, "player_joined")

	a.send("start_game", nil)
	a.untilType(nil, "game_started")
	b.untilType(nil, "game_started")
	a.untilType(nil, "cards_dealt")
	b.untilType(nil, "cards_dealt")
	a.untilType(nil, "bidding_turn")
	b.untilType(nil, "bidding_turn")

	// B drops without leaving.
	require.NoError(t, b.conn.Close())
	a.untilType(nil, "player_left")

	reconnected := dialWS(t, server)
	defer reconnected.conn.Close()
	reconnected.send("join_room", map[string]any{"roomId": "itajuba", "sessionId": joinedB.SessionID})

	var status struct {
		Status string `json:"status"`
	}
	require.Equal(t, "connection_status", reconnected.untilType(&status, "connection_status"))
	require.Equal(t, "reconnected", status.Status)
	require.Equal(t, "room_joined", reconnected.untilType(nil, "room_joined"))

	var stateUpdate struct {
		GameState struct {
			Phase string `json:"phase"`
		} `json:"gameState"`
	}
	reconnected.untilType(&stateUpdate, "game_state_update")
}

func TestGameTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.GameTimeLimitMS = 200
	cfg.GameTickIntervalSec = 1
	server, cleanup := testServer(t, cfg)
	defer cleanup()

	a := dialWS(t, server)
	defer a.conn.Close()
	a.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Ana"})
	a.next(nil)

	b := dialWS(t, server)
	defer b.conn.Close()
	b.send("join_room", map[string]any{"roomId": "itajuba", "displayName": "Beto"})
	b.next(nil)
	a.untilType(nil, "player_joined")

	a.send("start_game", nil)

	var completed struct {
		Reason   string `json:"reason"`
		WinnerID string `json:"winnerId"`
	}
	require.Equal(t, "game_completed", a.untilType(&completed, "game_completed"))
	require.Equal(t, "timeout", completed.Reason)
	require.Empty(t, completed.WinnerID)
}

func TestHealthAndRoomsEndpoints(t *testing.T) {
	server, cleanup := testServer(t, testConfig())
	defer cleanup()

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "ok", health["status"])

	resp2, err := http.Get(server.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var rooms []map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	require.Equal(t, "itajuba", rooms[0]["roomId"])
}

