// Package ws is the per-connection intent dispatch layer (spec.md
// §4.8): it upgrades HTTP to a websocket, decodes the eight client
// intents, authorizes and validates each against the sender's bound
// player identity, and routes it to session/engine. Ported from the
// teacher's ws package, generalized from two fixed message kinds to
// this domain's eight intents and from a fixed two-player match to a
// variable-size room with spectators and a host role.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"truco-fdp-server/apperr"
	"truco-fdp-server/applog"
	"truco-fdp-server/broadcast"
	"truco-fdp-server/config"
	"truco-fdp-server/engine"
	"truco-fdp-server/session"
	"truco-fdp-server/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of active connections and the one engine.Game
// per room currently playing.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	games   map[string]*engine.Game // roomID -> active game

	Register   chan *Client
	Unregister chan *Client

	Sessions *session.Manager
	Fanout   *broadcast.Fanout
	Store    *store.Store
	Config   *config.Config
	log      *slog.Logger
}

// NewHub wires a Hub over the given session manager, fanout, store
// and config.
func NewHub(sessions *session.Manager, fanout *broadcast.Fanout, st *store.Store, cfg *config.Config, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		games:      make(map[string]*engine.Game),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Sessions:   sessions,
		Fanout:     fanout,
		Store:      st,
		Config:     cfg,
		log:        applog.Tagged(log, "ws"),
	}
}

// Run is the hub's connection-bookkeeping loop. It must run in its own
// goroutine and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.Register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.Unregister:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			close(c.Send)
			if c.PlayerID != "" {
				h.Fanout.Unregister(c.PlayerID, c.Send)
				if err := h.Sessions.Disconnect(c.SessionToken); err == nil {
					h.Fanout.RoomEvent(c.RoomID, "player_left", map[string]any{"playerId": c.PlayerID, "reason": "disconnected"})
					h.notifyPlayerCountChanged(c.RoomID)
				}
			}
		}
	}
}

// ServeWS upgrades the request to a websocket and starts the new
// connection's read/write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade", "err", err)
		return
	}
	c := &Client{
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		TransportID: uuid.NewString(),
	}
	h.Register <- c
	go c.WritePump()
	go c.ReadPump()
}

func (h *Hub) gameForRoom(roomID string) (*engine.Game, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.games[roomID]
	return g, ok
}

// startGame validates the start_game intent (host-only, room waiting,
// at least two connected seated players) and hands the room off to a
// fresh engine.Game whose player order is those connected players.
func (h *Hub) startGame(roomID, playerID string) (*engine.Game, error) {
	room, ok := h.Store.Room(roomID)
	if !ok {
		return nil, apperr.ErrInvalidRoom
	}
	player, ok := h.Store.Player(playerID)
	if !ok || !player.IsHost {
		return nil, apperr.ErrNotHost
	}
	if room.Status == store.RoomPlaying {
		return nil, apperr.ErrRoomInProgress
	}
	playerOrder := make([]string, 0, len(room.Seated))
	for _, pid := range room.Seated {
		if p, ok := h.Store.Player(pid); ok && p.ConnectionStatus == store.Connected {
			playerOrder = append(playerOrder, pid)
		}
	}
	if len(playerOrder) < 2 {
		return nil, apperr.ErrInsufficientPlayers
	}

	gameID := uuid.NewString()
	hostSettings := room.HostSettings

	room.Status = store.RoomPlaying
	room.ActiveGame = &store.GameSummary{GameID: gameID, Phase: string(store.PhaseWaiting)}
	h.Store.PutRoom(room)

	g := engine.New(roomID, playerOrder, hostSettings, h.Store, h.Config, h.Fanout, h.log, gameID)

	h.mu.Lock()
	h.games[roomID] = g
	h.mu.Unlock()

	go func() {
		g.Run()
		h.mu.Lock()
		delete(h.games, roomID)
		h.mu.Unlock()
	}()

	return g, nil
}

// notifyPlayerCountChanged tells roomID's active game, if any, that a
// seated player's connectivity changed, without blocking if the
// game's Actions channel is momentarily full.
func (h *Hub) notifyPlayerCountChanged(roomID string) {
	if g, ok := h.gameForRoom(roomID); ok {
		select {
		case g.Actions <- engine.Action{Type: engine.ActionPlayerCountChanged}:
		default:
		}
	}
}

// roomJoinedPayload builds the private room_joined event, spec.md
// §6's full join/reconnect snapshot.
func (h *Hub) roomJoinedPayload(room *store.Room, player *store.Player, sessionToken string) map[string]any {
	var currentPlayers []map[string]any
	for _, pid := range room.Seated {
		if p, ok := h.Store.Player(pid); ok {
			currentPlayers = append(currentPlayers, map[string]any{
				"playerId": p.ID, "displayName": p.DisplayName, "isHost": p.IsHost,
				"connectionStatus": p.ConnectionStatus, "lives": p.Lives,
			})
		}
	}
	var spectators []map[string]any
	for pid := range room.Spectators {
		if p, ok := h.Store.Player(pid); ok {
			spectators = append(spectators, map[string]any{"playerId": p.ID, "displayName": p.DisplayName})
		}
	}

	var gameSummary *store.GameSummary
	if g, ok := h.gameForRoom(room.ID); ok {
		state := g.State()
		gameSummary = &store.GameSummary{GameID: state.ID, Phase: string(state.Phase), Round: state.CurrentRound, Turn: state.CurrentPlayerIdx}
	}

	return map[string]any{
		"roomId": room.ID, "playerId": player.ID, "isHost": player.IsHost, "isSpectator": player.IsSpectator,
		"currentPlayers": currentPlayers, "spectators": spectators, "hostSettings": room.HostSettings,
		"chatMessages": room.Chat, "sessionId": sessionToken, "gameState": gameSummary,
	}
}
