package ws

import (
	"encoding/json"
	"time"

	"truco-fdp-server/apperr"
	"truco-fdp-server/cards"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is the per-connection middleman between a websocket and the
// Hub: it owns the socket's read/write pumps and, once join_room
// succeeds, a bound player identity.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	TransportID  string
	PlayerID     string
	RoomID       string
	SessionToken string
}

// ReadPump pumps messages from the websocket connection to the
// client's handler. It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket
// connection. It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendJoinError(apperr.ErrInvalidMessage)
		return
	}

	if c.PlayerID == "" && envelope.Type != "join_room" {
		c.sendJoinError(apperr.ErrSessionInvalidState)
		return
	}

	switch envelope.Type {
	case "join_room":
		c.handleJoinRoom(envelope.Raw)
	case "leave_room":
		c.handleLeaveRoom()
	case "start_game":
		c.handleStartGame()
	case "submit_bid":
		c.handleSubmitBid(envelope.Raw)
	case "play_card":
		c.handlePlayCard(envelope.Raw)
	case "chat_message":
		c.handleChatMessage(envelope.Raw)
	case "update_host_settings":
		c.handleUpdateHostSettings(envelope.Raw)
	default:
		c.sendActionError(envelope.Type, apperr.Newf(apperr.Validation, "invalid_message", "unknown intent %q", envelope.Type))
	}
}

func (c *Client) handleJoinRoom(raw json.RawMessage) {
	if c.PlayerID != "" {
		c.sendJoinError(apperr.Newf(apperr.Validation, "invalid_message", "already joined"))
		return
	}
	var msg JoinRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJoinError(apperr.ErrInvalidMessage)
		return
	}

	if msg.SessionID != "" {
		c.reconnect(msg.SessionID)
		return
	}

	res, err := c.Hub.Sessions.Join(msg.RoomID, msg.DisplayName, msg.Spectator)
	if err != nil {
		c.sendJoinError(err)
		return
	}

	c.PlayerID = res.Player.ID
	c.RoomID = res.Room.ID
	c.SessionToken = res.SessionToken
	c.Hub.Fanout.Register(c.PlayerID, c.Send)

	c.Hub.Fanout.SendTo(c.PlayerID, "room_joined", c.Hub.roomJoinedPayload(res.Room, res.Player, res.SessionToken))

	eventType := "player_joined"
	if res.Player.IsSpectator {
		eventType = "spectator_joined"
	}
	c.Hub.Fanout.RoomEvent(res.Room.ID, eventType, map[string]any{
		"playerId": res.Player.ID, "displayName": res.Player.DisplayName, "isHost": res.Player.IsHost,
	})
}

func (c *Client) reconnect(sessionID string) {
	res, err := c.Hub.Sessions.Reconnect(sessionID, c.TransportID)
	if err != nil {
		c.sendJoinError(err)
		return
	}
	c.PlayerID = res.Player.ID
	c.RoomID = res.Room.ID
	c.SessionToken = sessionID
	c.Hub.Fanout.Register(c.PlayerID, c.Send)

	c.Hub.Fanout.SendTo(c.PlayerID, "connection_status", map[string]any{"status": "reconnected"})
	c.Hub.Fanout.SendTo(c.PlayerID, "room_joined", c.Hub.roomJoinedPayload(res.Room, res.Player, sessionID))
	if g, ok := c.Hub.gameForRoom(res.Room.ID); ok {
		c.Hub.Fanout.SendTo(c.PlayerID, "game_state_update", map[string]any{
			"gameState": g.StateView(c.PlayerID), "yourPlayerId": c.PlayerID, "lastUpdateTime": time.Now().UnixMilli(),
		})
	}
	c.Hub.Fanout.ReplayActionSync(c.PlayerID)
}

func (c *Client) handleLeaveRoom() {
	roomID := c.RoomID
	playerID := c.PlayerID
	if err := c.Hub.Sessions.Leave(c.SessionToken); err != nil {
		c.sendActionError("leave_room", err)
		return
	}
	c.Hub.Fanout.Unregister(playerID, c.Send)
	c.Hub.Fanout.RoomEvent(roomID, "player_left", map[string]any{"playerId": playerID, "reason": "left"})
	c.Hub.notifyPlayerCountChanged(roomID)
	c.Hub.Fanout.SendTo(playerID, "room_left", nil)
	c.PlayerID, c.RoomID, c.SessionToken = "", "", ""
}

func (c *Client) handleStartGame() {
	if _, err := c.Hub.startGame(c.RoomID, c.PlayerID); err != nil {
		c.sendActionError("start_game", err)
	}
}

func (c *Client) handleSubmitBid(raw json.RawMessage) {
	var msg SubmitBidMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendActionError("submit_bid", apperr.ErrInvalidBid)
		return
	}
	g, ok := c.Hub.gameForRoom(c.RoomID)
	if !ok {
		c.sendActionError("submit_bid", apperr.ErrGameNotActive)
		return
	}
	if err := g.SubmitBid(c.PlayerID, msg.Bid); err != nil {
		// The last-bidder-restriction rejection is emitted directly by the
		// engine with the valid-bids set attached; avoid sending a second,
		// poorer-shaped action_error for the same rejection.
		if apperr.Code(err) != "last_bidder_restriction" {
			c.sendActionError("submit_bid", err)
		}
	}
}

func (c *Client) handlePlayCard(raw json.RawMessage) {
	var msg PlayCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendActionError("play_card", apperr.ErrInvalidCard)
		return
	}
	rank, err := cards.ParseRank(msg.Card.Rank)
	if err != nil {
		c.sendActionError("play_card", apperr.ErrInvalidCard)
		return
	}
	suit, err := cards.ParseSuit(msg.Card.Suit)
	if err != nil {
		c.sendActionError("play_card", apperr.ErrInvalidCard)
		return
	}
	g, ok := c.Hub.gameForRoom(c.RoomID)
	if !ok {
		c.sendActionError("play_card", apperr.ErrGameNotActive)
		return
	}
	if err := g.PlayCard(c.PlayerID, cards.Card{Rank: rank, Suit: suit}); err != nil {
		c.sendActionError("play_card", err)
	}
}

func (c *Client) handleChatMessage(raw json.RawMessage) {
	var msg ChatMessageMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendAck("chat_message", apperr.ErrInvalidMessage)
		return
	}
	room, ok := c.Hub.Store.Room(c.RoomID)
	if !ok {
		c.sendAck("chat_message", apperr.ErrInvalidRoom)
		return
	}
	player, ok := c.Hub.Store.Player(c.PlayerID)
	if !ok {
		c.sendAck("chat_message", apperr.ErrSessionNotFound)
		return
	}
	if player.IsSpectator && !room.HostSettings.AllowSpectatorChat {
		c.sendAck("chat_message", apperr.ErrSpectatorChatDisabled)
		return
	}
	if _, err := c.Hub.Fanout.PostChat(room, player.ID, player.DisplayName, msg.Message, player.IsSpectator, false); err != nil {
		c.sendAck("chat_message", apperr.Newf(apperr.Validation, "invalid_message", "%v", err))
		return
	}
	c.sendAck("chat_message", nil)
}

func (c *Client) handleUpdateHostSettings(raw json.RawMessage) {
	var msg UpdateHostSettingsMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendAck("update_host_settings", apperr.ErrInvalidMessage)
		return
	}
	room, ok := c.Hub.Store.Room(c.RoomID)
	if !ok {
		c.sendAck("update_host_settings", apperr.ErrInvalidRoom)
		return
	}
	player, ok := c.Hub.Store.Player(c.PlayerID)
	if !ok || !player.IsHost {
		c.sendAck("update_host_settings", apperr.ErrNotHost)
		return
	}

	var chatToggled *bool
	if msg.AllowSpectatorChat != nil && *msg.AllowSpectatorChat != room.HostSettings.AllowSpectatorChat {
		chatToggled = msg.AllowSpectatorChat
	}
	if msg.AllowSpectatorChat != nil {
		room.HostSettings.AllowSpectatorChat = *msg.AllowSpectatorChat
	}
	if msg.TurnTimer != nil {
		room.HostSettings.TurnTimerSeconds = c.Hub.Config.ClampTurnTimer(*msg.TurnTimer)
	}
	if msg.StartingLives != nil && *msg.StartingLives > 0 {
		room.HostSettings.StartingLives = *msg.StartingLives
	}
	c.Hub.Store.PutRoom(room)

	c.Hub.Fanout.RoomEvent(room.ID, "host_settings_updated", map[string]any{
		"roomId": room.ID, "hostSettings": room.HostSettings,
	})
	if chatToggled != nil {
		state := "disabled"
		if *chatToggled {
			state = "enabled"
		}
		c.Hub.Fanout.PostChat(room, "", "", "spectator chat "+state+" by host", false, true)
	}
	c.sendAck("update_host_settings", nil)
}

func (c *Client) sendJoinError(err error) {
	c.sendJSON("join_error", map[string]any{"error": apperr.Code(err), "message": err.Error()})
}

func (c *Client) sendActionError(action string, err error) {
	c.sendJSON("action_error", map[string]any{"action": action, "error": apperr.Code(err), "message": err.Error()})
}

func (c *Client) sendAck(action string, err error) {
	if err == nil {
		c.sendJSON(action+"_ack", map[string]any{"status": "ok"})
		return
	}
	c.sendJSON(action+"_ack", map[string]any{"status": "error", "error": apperr.Code(err), "message": err.Error()})
}

func (c *Client) sendJSON(eventType string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["type"] = eventType
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
