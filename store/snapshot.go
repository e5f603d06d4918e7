package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotVersion = 1

// snapshotDoc is the on-disk shape of a persisted snapshot.
type snapshotDoc struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"savedAt"`
	Sequence uint64           `json:"sequence"`
	Reason   string           `json:"reason"`
	Rooms    []*Room          `json:"rooms"`
	Players  []*Player        `json:"players"`
	Games    []*GameState     `json:"games"`
	Sessions []*Session       `json:"sessions"`
}

// Persist writes the current world to s.snapshotPath using
// write-temp-then-rename, so a crash mid-write never corrupts the
// live file. A pending write is serialized behind snapshotMu so two
// callers (the periodic ticker and a termination-signal flush) never
// race on the same path. reason is recorded for operational visibility
// (e.g. "interval", "shutdown").
func (s *Store) Persist(reason string) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	doc := s.buildSnapshot(reason)

	dir := filepath.Dir(s.snapshotPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create snapshot dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "snapshot-*.json.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		return fmt.Errorf("store: rename snapshot into place: %w", err)
	}

	s.log.Info("snapshot persisted", "reason", reason, "sequence", doc.Sequence,
		"rooms", len(doc.Rooms), "players", len(doc.Players), "games", len(doc.Games))
	return nil
}

func (s *Store) buildSnapshot(reason string) snapshotDoc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.sequence++
	doc := snapshotDoc{
		Version:  snapshotVersion,
		SavedAt:  time.Now(),
		Sequence: s.sequence,
		Reason:   reason,
		Rooms:    make([]*Room, 0, len(s.rooms)),
		Players:  make([]*Player, 0, len(s.players)),
		Games:    make([]*GameState, 0, len(s.games)),
		Sessions: make([]*Session, 0, len(s.sessions)),
	}
	for _, r := range s.rooms {
		doc.Rooms = append(doc.Rooms, r)
	}
	for _, p := range s.players {
		doc.Players = append(doc.Players, p)
	}
	for _, g := range s.games {
		doc.Games = append(doc.Games, g)
	}
	for _, sess := range s.sessions {
		doc.Sessions = append(doc.Sessions, sess)
	}
	return doc
}

// Restore reads s.snapshotPath and rehydrates the store's maps. A
// missing file is treated as an empty world, which is the normal case
// on first boot.
func (s *Store) Restore() error {
	f, err := os.Open(s.snapshotPath)
	if os.IsNotExist(err) {
		s.log.Info("no snapshot file found, starting with an empty world", "path", s.snapshotPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: open snapshot: %w", err)
	}
	defer f.Close()

	var doc snapshotDoc
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return fmt.Errorf("store: decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence = doc.Sequence
	for _, r := range doc.Rooms {
		s.rooms[r.ID] = r
	}
	for _, p := range doc.Players {
		s.players[p.ID] = p
	}
	for _, g := range doc.Games {
		s.games[g.ID] = g
	}
	for _, sess := range doc.Sessions {
		s.sessions[sess.ID] = sess
	}

	s.log.Info("snapshot restored", "sequence", doc.Sequence, "savedAt", doc.SavedAt,
		"rooms", len(doc.Rooms), "players", len(doc.Players), "games", len(doc.Games))
	return nil
}

// RunPeriodicSnapshot blocks, writing a snapshot every interval until
// stop is closed. It is meant to run in its own goroutine from main.
func (s *Store) RunPeriodicSnapshot(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Persist("interval"); err != nil {
				s.log.Error("periodic snapshot failed", "error", err)
			}
		case <-stop:
			if err := s.Persist("shutdown"); err != nil {
				s.log.Error("shutdown snapshot failed", "error", err)
			}
			return
		}
	}
}
