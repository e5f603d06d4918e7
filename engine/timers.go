package engine

import (
	"time"

	"truco-fdp-server/store"
)

// armTurnTimer starts a cancellable single-shot goroutine that sends
// onExpire into g.Actions at deadline, unless cancelTurnTimer fires
// first. Mirrors the teacher's turnTimerCancel pattern, generalized to
// carry which action fires on expiry (bid vs play timeout).
func (g *Game) armTurnTimer(deadline time.Time, onExpire ActionType) {
	g.cancelTurnTimer()
	cancel := make(chan struct{})
	g.turnTimerCancel = cancel
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			select {
			case g.Actions <- Action{Type: onExpire}:
			case <-g.Done:
			}
		case <-cancel:
		case <-g.Done:
		}
	}()
}

func (g *Game) cancelTurnTimer() {
	if g.turnTimerCancel != nil {
		close(g.turnTimerCancel)
		g.turnTimerCancel = nil
	}
}

// armTrickStartDelay schedules the pause between a trick resolving and
// the next one opening, so clients can show the resolved trick before
// it's cleared.
func (g *Game) armTrickStartDelay() {
	g.cancelTrickStartDelay()
	cancel := make(chan struct{})
	g.trickDelayCancel = cancel
	go func() {
		t := time.NewTimer(g.trickStartDelay)
		defer t.Stop()
		select {
		case <-t.C:
			select {
			case g.Actions <- Action{Type: ActionTrickStartDelayElapsed}:
			case <-g.Done:
			}
		case <-cancel:
		case <-g.Done:
		}
	}()
}

func (g *Game) cancelTrickStartDelay() {
	if g.trickDelayCancel != nil {
		close(g.trickDelayCancel)
		g.trickDelayCancel = nil
	}
}

// startGameTimer runs the whole-game wall clock: a ticker that sends
// ActionGameTick periodically so handleGameTick can broadcast time
// remaining and, once TimeLimitMS elapses, force-complete the game.
func (g *Game) startGameTimer() {
	if g.state.TimeLimitMS <= 0 {
		return
	}
	stop := make(chan struct{})
	g.gameTimerStop = stop
	interval := time.Duration(g.cfg.GameTickIntervalSec) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case g.Actions <- Action{Type: ActionGameTick}:
				case <-g.Done:
					return
				}
			case <-stop:
				return
			case <-g.Done:
				return
			}
		}
	}()
}

func (g *Game) handleGameTick() {
	if g.state.Phase == store.PhaseCompleted {
		return
	}
	elapsed := time.Since(g.state.StartedAt)
	remaining := time.Duration(g.state.TimeLimitMS)*time.Millisecond - elapsed
	status := "running"
	if remaining <= time.Duration(g.cfg.GameWarningMS)*time.Millisecond {
		status = "warning"
	}
	if remaining <= 0 {
		status = "expired"
		g.sink.RoomEvent(g.state.RoomID, "game_timer_update", map[string]any{
			"remainingMs": 0, "status": status,
		})
		g.completeGame(store.ReasonTimeout)
		return
	}
	g.sink.RoomEvent(g.state.RoomID, "game_timer_update", map[string]any{
		"remainingMs": remaining.Milliseconds(), "status": status,
	})
}

// handlePlayerCountChanged reacts to a seated player's connectivity
// change mid-game. A disconnect never eliminates a player by itself
// (elimination only happens via lives reaching 0 at round finalize),
// but if every seated player has disconnected there is no one left to
// drive the game forward, so it ends for insufficient players.
func (g *Game) handlePlayerCountChanged() {
	if g.state.Phase == store.PhaseCompleted {
		return
	}
	connected := 0
	for _, pid := range g.state.PlayerOrder {
		if p, ok := g.st.Player(pid); ok && p.ConnectionStatus == store.Connected {
			connected++
		}
	}
	if connected == 0 {
		g.completeGame(store.ReasonInsufficientPlayers)
	}
}

func (g *Game) stopAllTimers() {
	g.cancelTurnTimer()
	g.cancelTrickStartDelay()
	if g.gameTimerStop != nil {
		close(g.gameTimerStop)
		g.gameTimerStop = nil
	}
}
