package store

import (
	"log/slog"
	"sync"

	"truco-fdp-server/applog"
)

// Store is the process's single in-memory world: rooms, players,
// sessions and games, each keyed by id. All access is synchronized by
// mu; callers outside this package never see the maps directly.
type Store struct {
	mu sync.RWMutex

	rooms    map[string]*Room
	players  map[string]*Player
	sessions map[string]*Session
	games    map[string]*GameState

	log *slog.Logger

	snapshotMu   sync.Mutex // serializes snapshot writers
	snapshotPath string
	sequence     uint64
}

// New returns an empty Store. Call Restore to rehydrate it from a
// snapshot file before serving traffic.
func New(snapshotPath string, log *slog.Logger) *Store {
	return &Store{
		rooms:        make(map[string]*Room),
		players:      make(map[string]*Player),
		sessions:     make(map[string]*Session),
		games:        make(map[string]*GameState),
		log:          applog.Tagged(log, "store"),
		snapshotPath: snapshotPath,
	}
}

// --- Rooms ---

func (s *Store) PutRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
}

func (s *Store) Room(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

func (s *Store) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// --- Players ---

func (s *Store) PutPlayer(p *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}

func (s *Store) Player(id string) (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	return p, ok
}

func (s *Store) DeletePlayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
}

// --- Sessions ---

func (s *Store) PutSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Store) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// ListSessions returns every session currently held, independent of
// room or status, for the periodic expiry sweep.
func (s *Store) ListSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// --- Games ---

func (s *Store) PutGame(g *GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

func (s *Store) Game(id string) (*GameState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	return g, ok
}

func (s *Store) DeleteGame(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}
