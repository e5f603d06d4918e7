package engine

import (
	"sort"
	"time"

	"truco-fdp-server/session"
	"truco-fdp-server/store"
)

// standingEntry is one player's final-ranking row in game_completed.
type standingEntry struct {
	PlayerID       string `json:"playerId"`
	DisplayName    string `json:"displayName"`
	LivesRemaining int    `json:"livesRemaining"`
	TricksWon      int    `json:"tricksWon"`
}

// completeGame ends the game for reason, idempotently: a second call
// after Phase is already Completed is a no-op. It cancels every timer,
// computes final standings, reseats every original participant back
// into the room at full lives as a non-spectator, re-elects the host
// and broadcasts game_completed.
func (g *Game) completeGame(reason store.CompletionReason) {
	if g.state.Phase == store.PhaseCompleted {
		return
	}
	g.stopAllTimers()

	now := time.Now()
	g.state.Phase = store.PhaseCompleted
	g.state.EndedAt = &now
	g.state.CompletionReason = reason

	standings := g.buildStandings()

	var winnerID string
	if reason != store.ReasonTimeout && len(standings) > 0 && standings[0].LivesRemaining > 0 {
		aliveCount := 0
		for _, s := range standings {
			if s.LivesRemaining > 0 {
				aliveCount++
			}
		}
		if aliveCount == 1 {
			winnerID = standings[0].PlayerID
		}
	}
	g.state.WinnerID = winnerID

	g.reseatParticipants()

	g.sink.RoomEvent(g.state.RoomID, "game_completed", map[string]any{
		"gameId": g.state.ID, "reason": reason, "winnerId": winnerID,
		"standings": standings, "gameStats": g.state.Stats,
	})
	g.sink.RoomEvent(g.state.RoomID, "game_timer_update", map[string]any{
		"remainingMs": 0, "status": "completed",
	})
}

func (g *Game) buildStandings() []standingEntry {
	standings := make([]standingEntry, 0, len(g.state.PlayerOrder))
	for _, pid := range g.originalPlayerOrder() {
		p, ok := g.st.Player(pid)
		if !ok {
			continue
		}
		standings = append(standings, standingEntry{
			PlayerID: pid, DisplayName: p.DisplayName,
			LivesRemaining: p.Lives, TricksWon: p.TricksWon,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].LivesRemaining != standings[j].LivesRemaining {
			return standings[i].LivesRemaining > standings[j].LivesRemaining
		}
		return standings[i].DisplayName < standings[j].DisplayName
	})
	return standings
}

// originalPlayerOrder recovers every player who was ever dealt into
// round 1, including those later eliminated, for final standings.
func (g *Game) originalPlayerOrder() []string {
	if len(g.state.Rounds) == 0 {
		return g.state.PlayerOrder
	}
	first := g.state.Rounds[0]
	ids := make([]string, 0, len(first.Hands))
	for pid := range first.Hands {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return ids
}

// reseatParticipants restores every original participant to the room's
// seating at full starting lives and clears their spectator flag, then
// re-elects the host and flips the room back to waiting for the next
// match.
func (g *Game) reseatParticipants() {
	room := g.room()
	if room == nil {
		return
	}
	for _, pid := range g.originalPlayerOrder() {
		p, ok := g.st.Player(pid)
		if !ok {
			continue
		}
		p.Lives = g.hostSettings.StartingLives
		p.IsSpectator = false
		p.Bid = nil
		p.Hand = nil
		p.TricksWon = 0
		g.st.PutPlayer(p)
		if !contains(room.Seated, pid) {
			room.Seated = append(room.Seated, pid)
		}
		delete(room.Spectators, pid)
	}
	room.Status = store.RoomWaiting
	room.ActiveGame = nil
	room.LastActivity = time.Now()
	session.ElectHost(g.st, room)
	g.st.PutRoom(room)
}

func contains(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
