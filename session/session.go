// Package session implements the join/leave/reconnect lifecycle and
// host election for rooms: it maps transport-independent player
// identities to a bounded reconnection grace window, enforces room
// capacity and display-name uniqueness, and keeps exactly one host
// elected per room with connected seated players.
package session

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"truco-fdp-server/apperr"
	"truco-fdp-server/applog"
	"truco-fdp-server/auth"
	"truco-fdp-server/config"
	"truco-fdp-server/store"

	"github.com/google/uuid"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9 ]{3,20}$`)

// NormalizeDisplayName collapses internal whitespace and trims the
// ends; it does not enforce length or character-set, callers must
// still validate the normalized result against nameRe.
func NormalizeDisplayName(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}

// Manager owns the join/leave/reconnect state machine for all rooms.
type Manager struct {
	mu  sync.Mutex
	st  *store.Store
	cfg *config.Config
	log *slog.Logger
}

// New returns a Manager backed by st and configured by cfg.
func New(st *store.Store, cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{st: st, cfg: cfg, log: applog.Tagged(log, "session")}
}

// JoinResult is returned on a successful Join.
type JoinResult struct {
	Room         *store.Room
	Player       *store.Player
	SessionToken string
}

// Join seats or spectates a new player in roomID under displayName.
// It fails with apperr.ErrInvalidRoom, ErrRoomFull, ErrRoomInProgress
// or ErrNameTaken/ErrInvalidName as appropriate; otherwise it mints a
// session, creates the player, re-elects the room's host and returns
// a snapshot of the new state.
func (m *Manager) Join(roomID, rawDisplayName string, requestSpectate bool) (*JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepExpiredLocked()

	if !m.cfg.IsKnownRoom(roomID) {
		return nil, apperr.ErrInvalidRoom
	}
	name := NormalizeDisplayName(rawDisplayName)
	if !nameRe.MatchString(name) {
		return nil, apperr.ErrInvalidName
	}

	room, ok := m.st.Room(roomID)
	if !ok {
		room = m.newRoom(roomID)
		m.st.PutRoom(room)
	}

	wantsSeat := !requestSpectate && len(room.Seated) < m.cfg.MaxSeatedPlayers
	if room.Status == store.RoomPlaying && !requestSpectate {
		// Active games don't accept new seated players, only spectators.
		return nil, apperr.ErrRoomInProgress
	}

	for _, pid := range room.Seated {
		if p, ok := m.st.Player(pid); ok && strings.EqualFold(p.DisplayName, name) {
			return nil, apperr.ErrNameTaken
		}
	}
	for spectatorID := range room.Spectators {
		if p, ok := m.st.Player(spectatorID); ok && strings.EqualFold(p.DisplayName, name) {
			return nil, apperr.ErrNameTaken
		}
	}

	if !wantsSeat && len(room.Seated) >= m.cfg.MaxSeatedPlayers && room.Status != store.RoomPlaying {
		return nil, apperr.ErrRoomFull
	}

	now := time.Now()
	player := &store.Player{
		ID:               uuid.NewString(),
		DisplayName:      name,
		RoomID:           roomID,
		Lives:            room.HostSettings.StartingLives,
		IsSpectator:      !wantsSeat,
		ConnectionStatus: store.Connected,
		AvatarSeed:       avatarSeed(name),
		JoinedAt:         now,
		LastSeenAt:       now,
	}
	m.st.PutPlayer(player)

	if wantsSeat {
		room.Seated = append(room.Seated, player.ID)
	} else {
		if room.Spectators == nil {
			room.Spectators = make(map[string]bool)
		}
		room.Spectators[player.ID] = true
	}
	room.LastActivity = now
	m.st.PutRoom(room)

	m.electHostLocked(room)

	token, err := auth.IssueSessionToken(m.cfg.JWTSigningKey, player.ID, roomID)
	if err != nil {
		return nil, apperr.Newf(apperr.Internal, "internal_error", "issue session token: %v", err)
	}
	m.st.PutSession(&store.Session{
		ID:       token,
		PlayerID: player.ID,
		RoomID:   roomID,
		Status:   store.Connected,
	})

	m.log.Info("player joined", "room", roomID, "player", player.ID, "spectator", player.IsSpectator)
	return &JoinResult{Room: room, Player: player, SessionToken: token}, nil
}

// Disconnect marks sessionToken's session and player disconnected,
// starting the reconnection grace window, and re-elects the room's
// host among the remaining connected players.
func (m *Manager) Disconnect(sessionToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.st.Session(sessionToken)
	if !ok {
		return apperr.ErrSessionNotFound
	}
	expires := time.Now().Add(time.Duration(m.cfg.SessionGraceSec) * time.Second)
	sess.Status = store.Disconnected
	sess.ExpiresAt = &expires
	m.st.PutSession(sess)

	if p, ok := m.st.Player(sess.PlayerID); ok {
		p.ConnectionStatus = store.Disconnected
		p.TransportID = ""
		p.LastSeenAt = time.Now()
		m.st.PutPlayer(p)
	}

	if room, ok := m.st.Room(sess.RoomID); ok {
		m.electHostLocked(room)
		m.st.PutRoom(room)
	}
	return nil
}

// ReconnectResult is returned on a successful Reconnect.
type ReconnectResult struct {
	Room   *store.Room
	Player *store.Player
}

// Reconnect rebinds transportID to the player behind sessionToken. An
// unknown session yields ErrSessionNotFound; an expired one removes
// the player entirely and yields ErrSessionExpired.
func (m *Manager) Reconnect(sessionToken, transportID string) (*ReconnectResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	playerID, roomID, err := auth.VerifySessionToken(m.cfg.JWTSigningKey, sessionToken)
	if err != nil {
		return nil, apperr.ErrSessionInvalidState
	}

	sess, ok := m.st.Session(sessionToken)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	if sess.ExpiresAt != nil && !sess.ExpiresAt.After(time.Now()) {
		m.removePlayerLocked(playerID, roomID)
		m.st.DeleteSession(sessionToken)
		return nil, apperr.ErrSessionExpired
	}

	sess.Status = store.Connected
	sess.ExpiresAt = nil
	m.st.PutSession(sess)

	player, ok := m.st.Player(playerID)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	player.ConnectionStatus = store.Connected
	player.TransportID = transportID
	player.LastSeenAt = time.Now()
	m.st.PutPlayer(player)

	room, ok := m.st.Room(roomID)
	if !ok {
		return nil, apperr.ErrInvalidRoom
	}
	m.electHostLocked(room)
	m.st.PutRoom(room)

	return &ReconnectResult{Room: room, Player: player}, nil
}

// Leave voluntarily removes the player behind sessionToken from their
// room (seating or spectator list), destroys the session and
// re-elects the host.
func (m *Manager) Leave(sessionToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.st.Session(sessionToken)
	if !ok {
		return apperr.ErrSessionNotFound
	}
	m.removePlayerLocked(sess.PlayerID, sess.RoomID)
	m.st.DeleteSession(sessionToken)
	return nil
}

// removePlayerLocked removes playerID from roomID's seating and
// spectator list, deletes the player record, and re-elects the host.
// Callers must hold m.mu.
func (m *Manager) removePlayerLocked(playerID, roomID string) {
	room, ok := m.st.Room(roomID)
	if ok {
		room.Seated = removeID(room.Seated, playerID)
		delete(room.Spectators, playerID)
		room.LastActivity = time.Now()
		m.electHostLocked(room)
		m.st.PutRoom(room)
	}
	m.st.DeletePlayer(playerID)
}

// ExpiredEntry describes a session removed by the expiry sweep, for
// the dispatch layer to emit a player_left(reason=disconnected) event.
type ExpiredEntry struct {
	PlayerID string
	RoomID   string
}

// SweepExpired removes every session whose grace window has passed,
// returning the removed entries so callers can broadcast their
// departure. It is safe to call concurrently with Join/Leave/etc.
func (m *Manager) SweepExpired() []ExpiredEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepExpiredLocked()
}

func (m *Manager) sweepExpiredLocked() []ExpiredEntry {
	now := time.Now()
	var removed []ExpiredEntry
	for _, sess := range m.st.ListSessions() {
		if sess.ExpiresAt != nil && !sess.ExpiresAt.After(now) {
			removed = append(removed, ExpiredEntry{PlayerID: sess.PlayerID, RoomID: sess.RoomID})
			m.removePlayerLocked(sess.PlayerID, sess.RoomID)
			m.st.DeleteSession(sess.ID)
		}
	}
	return removed
}

// electHostLocked enforces the host invariant for room. Callers must
// hold m.mu. See ElectHost for the rule itself.
func (m *Manager) electHostLocked(room *store.Room) {
	ElectHost(m.st, room)
}

// ElectHost enforces the host invariant: a room has exactly one host
// iff it has >= 1 seated player, that player being the
// lowest-joined-timestamp connected seated player, or (if none are
// connected) the lowest-joined-timestamp seated player overall. It
// takes no lock of its own; callers driving a room's seating from a
// single-writer context (a session Manager holding its mutex, or an
// engine.Game's own Run goroutine) may call it directly.
func ElectHost(st *store.Store, room *store.Room) {
	var seated []*store.Player
	for _, pid := range room.Seated {
		if p, ok := st.Player(pid); ok {
			seated = append(seated, p)
		}
	}
	if len(seated) == 0 {
		return
	}
	sort.Slice(seated, func(i, j int) bool { return seated[i].JoinedAt.Before(seated[j].JoinedAt) })

	var newHost *store.Player
	for _, p := range seated {
		if p.ConnectionStatus == store.Connected {
			newHost = p
			break
		}
	}
	if newHost == nil {
		newHost = seated[0]
	}
	for _, p := range seated {
		wasHost := p.IsHost
		p.IsHost = p.ID == newHost.ID
		if wasHost != p.IsHost {
			st.PutPlayer(p)
		}
	}
}

// RunExpirySweep blocks, sweeping expired sessions every interval
// until stop is closed. onExpired, if non-nil, is called with each
// sweep's removed entries so the dispatch layer can broadcast
// player_left events.
func (m *Manager) RunExpirySweep(interval time.Duration, stop <-chan struct{}, onExpired func([]ExpiredEntry)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := m.SweepExpired()
			if len(removed) > 0 && onExpired != nil {
				onExpired(removed)
			}
		case <-stop:
			return
		}
	}
}

func (m *Manager) newRoom(roomID string) *store.Room {
	displayName := roomID
	for _, def := range m.cfg.Rooms {
		if def.ID == roomID {
			displayName = def.DisplayName
			break
		}
	}
	return &store.Room{
		ID:          roomID,
		DisplayName: displayName,
		Status:      store.RoomWaiting,
		Spectators:  make(map[string]bool),
		HostSettings: store.HostSettings{
			StartingLives:          m.cfg.HostSettingsDefaults.StartingLives,
			TurnTimerSeconds:       m.cfg.HostSettingsDefaults.TurnTimerSeconds,
			AllowSpectatorChat:     m.cfg.HostSettingsDefaults.AllowSpectatorChat,
			RoundTransitionDelayMS: m.cfg.HostSettingsDefaults.RoundTransitionDelayMS,
			Locale:                 "pt-BR",
		},
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
}

func removeID(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// avatarSeed derives a stable integer from a display name for
// deterministic client-side avatar rendering; it has no gameplay
// effect.
func avatarSeed(name string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	return seed
}
