// Package broadcast turns engine events into per-connection sends: it
// fans a room-wide event out to every seated player and spectator
// currently connected to that room, addresses a private event to one
// player's current transport, replays the most recent action on
// reconnect, and runs the room chat. It is the generalized form of the
// teacher's inline broadcastState/sendError calls, extracted into its
// own type because this domain's rooms hold up to ten seated players
// plus spectators instead of the teacher's fixed two.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"truco-fdp-server/applog"
	"truco-fdp-server/config"
	"truco-fdp-server/store"
	"truco-fdp-server/wsutil"

	"github.com/google/uuid"
)

// Fanout implements engine.Sink and additionally serves the ws dispatch
// layer's addressed sends (room_joined, action_error, action_sync
// replay) and the chat subsystem.
type Fanout struct {
	mu    sync.Mutex
	conns map[string]chan []byte // playerID -> current transport's outbound channel

	actionSync map[string]*actionSyncEntry // playerID -> most recent cached action
	pendingAuto map[string]string          // playerID -> action name, set by an auto_action just broadcast

	lastChatAt map[string]time.Time // senderID -> last accepted chat time, for throttling

	st  *store.Store
	cfg *config.Config
	log *slog.Logger
}

type actionSyncEntry struct {
	action     string
	payload    any
	status     string
	recordedAt time.Time
}

// New returns a Fanout backed by st and configured by cfg.
func New(st *store.Store, cfg *config.Config, log *slog.Logger) *Fanout {
	return &Fanout{
		conns:       make(map[string]chan []byte),
		actionSync:  make(map[string]*actionSyncEntry),
		pendingAuto: make(map[string]string),
		lastChatAt:  make(map[string]time.Time),
		st:          st,
		cfg:         cfg,
		log:         applog.Tagged(log, "broadcast"),
	}
}

// Register binds playerID's outbound sends to ch, replacing any
// previous channel (a reconnect supersedes the dropped connection's
// channel without the dispatch layer needing to unregister first).
func (f *Fanout) Register(playerID string, ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[playerID] = ch
}

// Unregister removes playerID's channel iff it still matches ch (a
// stale unregister from an already-superseded connection is a no-op).
func (f *Fanout) Unregister(playerID string, ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.conns[playerID]; ok && cur == ch {
		delete(f.conns, playerID)
	}
}

// RoomEvent implements engine.Sink: it sends eventType/payload to every
// seated player and spectator currently connected to roomID.
func (f *Fanout) RoomEvent(roomID, eventType string, payload any) {
	data, err := buildEnvelope(eventType, payload)
	if err != nil {
		f.log.Error("marshal room event", "room", roomID, "event", eventType, "err", err)
		return
	}
	f.trackActionSync(eventType, payload)

	room, ok := f.st.Room(roomID)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pid := range room.Seated {
		if ch, ok := f.conns[pid]; ok {
			wsutil.SafeSend(ch, data)
		}
	}
	for pid := range room.Spectators {
		if ch, ok := f.conns[pid]; ok {
			wsutil.SafeSend(ch, data)
		}
	}
}

// PrivateEvent implements engine.Sink: it addresses eventType/payload
// to playerID's current transport only, dropping it silently if the
// player is not presently connected (the action-sync cache, not this
// call, is what lets a reconnect catch up).
func (f *Fanout) PrivateEvent(roomID, playerID, eventType string, payload any) {
	data, err := buildEnvelope(eventType, payload)
	if err != nil {
		f.log.Error("marshal private event", "room", roomID, "player", playerID, "event", eventType, "err", err)
		return
	}
	f.mu.Lock()
	ch, ok := f.conns[playerID]
	f.mu.Unlock()
	if ok {
		wsutil.SafeSend(ch, data)
	}
}

// SendTo addresses an event to playerID regardless of room membership,
// for handshake-scoped events (room_joined, join_error, action_error,
// room_left) the ws dispatch layer emits directly.
func (f *Fanout) SendTo(playerID, eventType string, payload any) {
	data, err := buildEnvelope(eventType, payload)
	if err != nil {
		f.log.Error("marshal addressed event", "player", playerID, "event", eventType, "err", err)
		return
	}
	f.mu.Lock()
	ch, ok := f.conns[playerID]
	f.mu.Unlock()
	if ok {
		wsutil.SafeSend(ch, data)
	}
}

// trackActionSync caches submit_bid/play_card outcomes per acting
// player (spec.md §4.7: TTL 60s, replayed once on reconnect). auto_action
// events mark the following bid_submitted/card_played as an automatic
// action rather than a manual one.
func (f *Fanout) trackActionSync(eventType string, payload any) {
	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}
	playerID, _ := fields["playerId"].(string)
	if playerID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch eventType {
	case "auto_action":
		if action, _ := fields["action"].(string); action != "" {
			f.pendingAuto[playerID] = action
		}
	case "bid_submitted":
		status := "completed"
		if _, wasAuto := f.pendingAuto[playerID]; wasAuto {
			status = "auto"
			delete(f.pendingAuto, playerID)
		}
		f.actionSync[playerID] = &actionSyncEntry{action: "submit_bid", payload: fields, status: status, recordedAt: time.Now()}
	case "card_played":
		status := "completed"
		if _, wasAuto := f.pendingAuto[playerID]; wasAuto {
			status = "auto"
			delete(f.pendingAuto, playerID)
		}
		f.actionSync[playerID] = &actionSyncEntry{action: "play_card", payload: fields, status: status, recordedAt: time.Now()}
	}
}

// ReplayActionSync sends playerID's cached action, once, if it is
// still within the configured TTL, then clears the cache entry
// regardless of outcome (a stale or already-consumed cache never
// replays twice).
func (f *Fanout) ReplayActionSync(playerID string) {
	f.mu.Lock()
	entry, ok := f.actionSync[playerID]
	delete(f.actionSync, playerID)
	f.mu.Unlock()
	if !ok {
		return
	}
	ttl := time.Duration(f.cfg.ActionSyncTTLSec) * time.Second
	if time.Since(entry.recordedAt) > ttl {
		return
	}
	f.SendTo(playerID, "action_sync", map[string]any{
		"action":     entry.action,
		"payload":    entry.payload,
		"status":     entry.status,
		"recordedAt": entry.recordedAt.UnixMilli(),
	})
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// sanitizeChat strips HTML tags and collapses whitespace, per spec.md
// §4.7's chat rules; the caller is responsible for the length ceiling.
func sanitizeChat(raw string) string {
	stripped := tagRe.ReplaceAllString(raw, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(stripped, " "))
}

// ErrChatThrottled and ErrChatTooLong are returned by PostChat; the ws
// dispatch layer maps them onto the chat_message ack's error field.
var (
	ErrChatThrottled = &chatError{"chat throttled, slow down"}
	ErrChatTooLong   = &chatError{"message too long"}
	ErrChatEmpty     = &chatError{"message is empty"}
)

type chatError struct{ msg string }

func (e *chatError) Error() string { return e.msg }

// PostChat validates, throttles and appends a chat message to room's
// ring buffer, then broadcasts chat_message_received. isSystem marks a
// system message, which bypasses the empty check, throttling and the
// length limit.
func (f *Fanout) PostChat(room *store.Room, senderID, senderName, body string, isSpectator, isSystem bool) (store.ChatMessage, error) {
	clean := sanitizeChat(body)
	if !isSystem {
		if clean == "" {
			return store.ChatMessage{}, ErrChatEmpty
		}
		if len(clean) > f.cfg.ChatMaxLen {
			return store.ChatMessage{}, ErrChatTooLong
		}
		f.mu.Lock()
		last, throttled := f.lastChatAt[senderID]
		now := time.Now()
		if throttled && now.Sub(last) < time.Duration(f.cfg.ChatThrottleMS)*time.Millisecond {
			f.mu.Unlock()
			return store.ChatMessage{}, ErrChatThrottled
		}
		f.lastChatAt[senderID] = now
		f.mu.Unlock()
	}

	msg := store.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		SenderName: senderName,
		Body:       clean,
		IsSystem:   isSystem,
		SentAt:     time.Now(),
	}
	room.Chat = append(room.Chat, msg)
	if over := len(room.Chat) - f.cfg.ChatHistorySize; over > 0 {
		room.Chat = room.Chat[over:]
	}
	f.st.PutRoom(room)

	msgType := "player"
	if isSystem {
		msgType = "system"
	} else if isSpectator {
		msgType = "spectator"
	}
	f.RoomEvent(room.ID, "chat_message_received", map[string]any{
		"messageId":   msg.ID,
		"playerId":    senderID,
		"displayName": senderName,
		"message":     msg.Body,
		"timestamp":   msg.SentAt.UnixMilli(),
		"type":        msgType,
		"isSpectator": isSpectator,
	})
	return msg, nil
}

// buildEnvelope flattens payload's fields (struct or map) into a
// single JSON object carrying a "type" field, matching the flat
// {"type": "...", ...fields} shape spec.md's wire events use.
func buildEnvelope(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = eventType
	return json.Marshal(fields)
}
