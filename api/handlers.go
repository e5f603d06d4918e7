// Package api serves the read-only HTTP surface alongside the
// websocket transport: room listing, room detail and a health check,
// each reading a snapshot of the store rather than mutating it.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"truco-fdp-server/config"
	"truco-fdp-server/store"
)

// Handler holds the dependencies the HTTP handlers read from.
type Handler struct {
	Config *config.Config
	Store  *store.Store

	startedAt time.Time
}

// NewHandler creates an api.Handler backed by cfg and st.
func NewHandler(cfg *config.Config, st *store.Store) *Handler {
	return &Handler{Config: cfg, Store: st, startedAt: time.Now()}
}

// cors sets the configured CORS headers and reports whether it fully
// handled the request (an OPTIONS preflight).
func (h *Handler) cors(w http.ResponseWriter, r *http.Request) bool {
	origin := "*"
	if len(h.Config.CORSOrigins) > 0 {
		origin = strings.Join(h.Config.CORSOrigins, ", ")
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// roomListEntry is one room's row in GET /api/rooms.
type roomListEntry struct {
	RoomID         string `json:"roomId"`
	DisplayName    string `json:"displayName"`
	PlayerCount    int    `json:"playerCount"`
	SpectatorCount int    `json:"spectatorCount"`
	MaxPlayers     int    `json:"maxPlayers"`
	GameStatus     string `json:"gameStatus"`
	CanJoin        bool   `json:"canJoin"`
}

// Rooms handles GET /api/rooms: a lightweight listing for a lobby screen.
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	if h.cors(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := make([]roomListEntry, 0, len(h.Config.Rooms))
	for _, def := range h.Config.Rooms {
		entries = append(entries, h.listEntryFor(def.ID, def.DisplayName))
	}
	writeJSON(w, entries)
}

func (h *Handler) listEntryFor(roomID, displayName string) roomListEntry {
	room, ok := h.Store.Room(roomID)
	if !ok {
		return roomListEntry{
			RoomID: roomID, DisplayName: displayName, MaxPlayers: h.Config.MaxSeatedPlayers,
			GameStatus: string(store.RoomWaiting), CanJoin: true,
		}
	}
	return roomListEntry{
		RoomID:         room.ID,
		DisplayName:    displayName,
		PlayerCount:    len(room.Seated),
		SpectatorCount: len(room.Spectators),
		MaxPlayers:     h.Config.MaxSeatedPlayers,
		GameStatus:     string(room.Status),
		CanJoin:        room.Status == store.RoomWaiting || len(room.Seated) < h.Config.MaxSeatedPlayers,
	}
}

// RoomDetail handles GET /api/rooms/:id.
func (h *Handler) RoomDetail(w http.ResponseWriter, r *http.Request) {
	if h.cors(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	if roomID == "" || strings.Contains(roomID, "/") || !h.Config.IsKnownRoom(roomID) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	room, ok := h.Store.Room(roomID)
	if !ok {
		writeJSON(w, h.listEntryFor(roomID, roomID))
		return
	}
	writeJSON(w, room)
}

// Health handles GET /api/health: liveness plus coarse counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.cors(w, r) {
		return
	}
	rooms := h.Store.Rooms()
	playing := 0
	for _, room := range rooms {
		if room.Status == store.RoomPlaying {
			playing++
		}
	}
	writeJSON(w, map[string]any{
		"status":       "ok",
		"uptimeSec":    int(time.Since(h.startedAt).Seconds()),
		"roomCount":    len(rooms),
		"gamesPlaying": playing,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
