// Package store holds the server's in-memory world — rooms, players,
// sessions and games — plus the crash-safe snapshot that lets it
// survive a restart. It exposes CRUD-style accessors; rule evaluation
// and transitions live in rules/engine/session, not here.
package store

import (
	"time"

	"truco-fdp-server/cards"
)

// RoomStatus is a room's lifecycle state.
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
)

// HostSettings is the per-room, host-configurable ruleset.
type HostSettings struct {
	StartingLives          int  `json:"startingLives"`
	TurnTimerSeconds       int  `json:"turnTimerSeconds"`
	AllowSpectatorChat     bool `json:"allowSpectatorChat"`
	RoundTransitionDelayMS int  `json:"roundTransitionDelayMs"`
	// Locale is surfaced to clients for i18n; it has no effect on
	// engine behavior.
	Locale string `json:"locale,omitempty"`
}

// GameSummary is the lightweight view of the active game a Room
// carries for listing purposes, without duplicating full GameState.
type GameSummary struct {
	GameID string `json:"gameId"`
	Phase  string `json:"phase"`
	Round  int    `json:"round"`
	Turn   int    `json:"turn"`
}

// Room is a fixed-identity lobby players join directly (no
// matchmaking: the fixed set of rooms is configured, not discovered).
type Room struct {
	ID           string          `json:"roomId"`
	DisplayName  string          `json:"displayName"`
	Status       RoomStatus      `json:"status"`
	Seated       []string        `json:"seated"` // player ids, seating order
	Spectators   map[string]bool `json:"spectators"`
	HostSettings HostSettings    `json:"hostSettings"`
	Chat         []ChatMessage   `json:"chat"`
	ActiveGame   *GameSummary    `json:"activeGame,omitempty"`
	LastActivity time.Time       `json:"lastActivity"`
	CreatedAt    time.Time       `json:"createdAt"`
	Tags         []string        `json:"tags,omitempty"`
}

// ChatMessage is one entry in a room's bounded chat ring buffer.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	IsSystem   bool      `json:"isSystem"`
	SentAt     time.Time `json:"sentAt"`
}

// ConnectionStatus is a player's live transport state.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// Player is a stable participant identity, independent of any one
// transport connection.
type Player struct {
	ID               string
	DisplayName      string
	TransportID      string // current connection id, "" when disconnected
	RoomID           string
	Lives            int
	IsHost           bool
	IsSpectator      bool
	ConnectionStatus ConnectionStatus
	Hand             []cards.Card
	Bid              *int
	TricksWon        int
	AvatarSeed       int64
	JoinedAt         time.Time
	LastSeenAt       time.Time
}

// Session maps a transport-independent session id to a player, so a
// reconnect can rebind a new transport id to the same seat.
type Session struct {
	ID        string
	PlayerID  string
	RoomID    string
	Status    ConnectionStatus
	ExpiresAt *time.Time // set iff Status == Disconnected
	Metadata  map[string]string
}

// GamePhase is the authoritative per-room state machine's phase.
type GamePhase string

const (
	PhaseWaiting  GamePhase = "waiting"
	PhaseBidding  GamePhase = "bidding"
	PhasePlaying  GamePhase = "playing"
	PhaseScoring  GamePhase = "scoring"
	PhaseCompleted GamePhase = "completed"
)

// CompletionReason explains why a GameState reached PhaseCompleted.
type CompletionReason string

const (
	ReasonVictory             CompletionReason = "victory"
	ReasonInsufficientPlayers CompletionReason = "insufficient_players"
	ReasonTimeout             CompletionReason = "timeout"
)

// Trick is one round's single hand of play.
type Trick struct {
	Number         int
	LeadPlayerID   string
	Plays          []TrickPlay
	CancelledCards []TrickPlay
	WinnerID       string // "" if no winner
	CompletedAt    *time.Time
}

// TrickPlay is one card played into a trick.
type TrickPlay struct {
	PlayerID  string
	Card      cards.Card
	PlayedAt  time.Time
}

// GameRound is one dealt round: the hands, bids and tricks played
// with that round's card count.
type GameRound struct {
	Number        int
	CardCount     int
	Vira          cards.Card
	ManilhaRank   cards.Rank
	IsBlindRound  bool
	Hands         map[string][]cards.Card
	Bids          map[string]int
	Tricks        []*Trick
	Results       []RoundResult
}

// RoundResult is one player's scored outcome for a completed round.
type RoundResult struct {
	PlayerID       string
	Bid            int
	TricksActual   int
	LivesLost      int
	LivesRemaining int
}

// GameStats is a running counter block surfaced in game_completed.
type GameStats struct {
	TricksPlayed   int
	Cancellations  int
	AutoActions    int
}

// GameState is the authoritative per-room game: player order, phase,
// turn cursor and the full round history.
type GameState struct {
	ID                string
	RoomID            string
	PlayerOrder       []string
	CurrentRound      int
	Phase             GamePhase
	CurrentPlayerIdx  int
	Rounds            []*GameRound
	TimeLimitMS       int64
	StartedAt         time.Time
	EndedAt           *time.Time
	CompletionReason  CompletionReason
	WinnerID          string
	Stats             GameStats
}
