// Package engine implements the authoritative per-room game-session
// state machine: dealing, bidding, trick play and resolution, round
// finalization, elimination and game completion, plus the three
// timers that drive automatic actions. Exactly one Game runs per
// active match; all mutation is serialized through its Actions
// channel and drained by a single Run goroutine, the same
// single-actor shape the teacher uses for game.Game.
package engine

import (
	"log/slog"
	"time"

	"truco-fdp-server/apperr"
	"truco-fdp-server/applog"
	"truco-fdp-server/cards"
	"truco-fdp-server/config"
	"truco-fdp-server/store"
)

// Game owns one room's active GameState and drives its transitions.
type Game struct {
	state *store.GameState
	st    *store.Store
	cfg   *config.Config
	sink  Sink
	log   *slog.Logger

	Actions chan Action
	Done    chan struct{}

	turnTimerCancel  chan struct{}
	trickDelayCancel chan struct{}
	gameTimerStop    chan struct{}

	trickStartDelay time.Duration // 0 in tests, cfg.TrickStartDelayMS in production

	// hostSettings is frozen at game start so a host-settings change
	// mid-game doesn't retroactively alter an in-progress game.
	hostSettings store.HostSettings

	// pendingNextRound is the round number to deal once the
	// round-transition delay timer fires; 0 when none is pending.
	pendingNextRound int
}

// New constructs a Game for roomID, seating playerOrder (already
// filtered to connected, non-spectator players by the caller). It does
// not start Run; call go g.Run(), which deals the first round.
func New(roomID string, playerOrder []string, hostSettings store.HostSettings, st *store.Store, cfg *config.Config, sink Sink, log *slog.Logger, gameID string) *Game {
	if sink == nil {
		sink = noopSink{}
	}
	state := &store.GameState{
		ID:               gameID,
		RoomID:           roomID,
		PlayerOrder:      append([]string(nil), playerOrder...),
		CurrentRound:     0,
		Phase:            store.PhaseWaiting,
		CurrentPlayerIdx: 0,
		TimeLimitMS:      cfg.GameTimeLimitMS,
		StartedAt:        time.Now(),
	}
	g := &Game{
		state:           state,
		st:              st,
		cfg:             cfg,
		sink:            sink,
		log:             applog.Tagged(log, "engine"),
		Actions:         make(chan Action, 32),
		Done:            make(chan struct{}),
		trickStartDelay: time.Duration(cfg.TrickStartDelayMS) * time.Millisecond,
		hostSettings:    hostSettings,
	}
	return g
}

// Run is the main loop. It must run in its own goroutine.
func (g *Game) Run() {
	defer close(g.Done)

	g.startRound(1)
	g.startGameTimer()

	for action := range g.Actions {
		if g.state.Phase == store.PhaseCompleted {
			continue
		}
		switch action.Type {
		case ActionSubmitBid:
			err := g.handleSubmitBid(action.PlayerID, action.Bid)
			if action.replyErr != nil {
				action.replyErr <- err
			}
		case ActionPlayCard:
			err := g.handlePlayCard(action.PlayerID, action.Card)
			if action.replyErr != nil {
				action.replyErr <- err
			}
		case ActionBidTimeout:
			g.handleBidTimeout()
		case ActionPlayTimeout:
			g.handlePlayTimeout()
		case ActionTrickStartDelayElapsed:
			g.handleTrickStartDelayElapsed()
		case ActionNextRoundDelayElapsed:
			g.handleNextRoundDelayElapsed()
		case ActionGameTick:
			g.handleGameTick()
		case ActionPlayerCountChanged:
			g.handlePlayerCountChanged()
		case ActionStop:
			g.stopAllTimers()
			return
		}
		if g.state.Phase == store.PhaseCompleted {
			g.stopAllTimers()
			return
		}
	}
}

// State returns the current game state. Safe to call from outside
// Run's goroutine only for read-only snapshotting (e.g. the HTTP
// surface); callers must not mutate the returned value.
func (g *Game) State() *store.GameState {
	return g.state
}

// SubmitBid sends a submit_bid intent into the game and blocks for
// its validation result, matching the synchronous ack the ws dispatch
// layer needs to return to the client.
func (g *Game) SubmitBid(playerID string, bid int) error {
	reply := make(chan error, 1)
	select {
	case g.Actions <- Action{Type: ActionSubmitBid, PlayerID: playerID, Bid: bid, replyErr: reply}:
	case <-g.Done:
		return apperr.ErrGameNotActive
	}
	return <-reply
}

// PlayCard sends a play_card intent into the game and blocks for its
// validation result.
func (g *Game) PlayCard(playerID string, card cards.Card) error {
	reply := make(chan error, 1)
	select {
	case g.Actions <- Action{Type: ActionPlayCard, PlayerID: playerID, Card: card, replyErr: reply}:
	case <-g.Done:
		return apperr.ErrGameNotActive
	}
	return <-reply
}

// currentRound returns the round currently being played or bid on.
func (g *Game) currentRound() *store.GameRound {
	if len(g.state.Rounds) == 0 {
		return nil
	}
	return g.state.Rounds[len(g.state.Rounds)-1]
}

func (g *Game) currentPlayerID() string {
	if len(g.state.PlayerOrder) == 0 {
		return ""
	}
	return g.state.PlayerOrder[g.state.CurrentPlayerIdx]
}

// room reads the owning room; finalize/dealing steps need its host
// settings and seating.
func (g *Game) room() *store.Room {
	r, _ := g.st.Room(g.state.RoomID)
	return r
}

// activePlayerCount returns how many players in PlayerOrder still
// have lives remaining (have not been eliminated this game).
func (g *Game) activePlayerCount() int {
	n := 0
	for _, pid := range g.state.PlayerOrder {
		if p, ok := g.st.Player(pid); ok && p.Lives > 0 {
			n++
		}
	}
	return n
}

func (g *Game) playerRules() map[string]int {
	lives := make(map[string]int, len(g.state.PlayerOrder))
	for _, pid := range g.state.PlayerOrder {
		if p, ok := g.st.Player(pid); ok {
			lives[pid] = p.Lives
		}
	}
	return lives
}
