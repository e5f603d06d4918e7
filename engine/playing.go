package engine

import (
	"time"

	"truco-fdp-server/apperr"
	"truco-fdp-server/cards"
	"truco-fdp-server/rules"
	"truco-fdp-server/store"
)

// enterPlayingPhase transitions bidding -> playing and opens the
// round's first trick, led by the first player in order.
func (g *Game) enterPlayingPhase() {
	g.state.Phase = store.PhasePlaying
	g.state.CurrentPlayerIdx = 0
	g.openTrick(g.state.PlayerOrder[0])
}

// openTrick starts a new trick led by leadPlayerID.
func (g *Game) openTrick(leadPlayerID string) {
	round := g.currentRound()
	trick := &store.Trick{
		Number:       len(round.Tricks) + 1,
		LeadPlayerID: leadPlayerID,
	}
	round.Tricks = append(round.Tricks, trick)
	g.setCursorToPlayer(leadPlayerID)

	g.sink.RoomEvent(g.state.RoomID, "trick_started", map[string]any{
		"trickNumber": trick.Number, "leadPlayer": leadPlayerID,
	})
	g.armNextPlayTimer()
}

func (g *Game) setCursorToPlayer(playerID string) {
	for i, pid := range g.state.PlayerOrder {
		if pid == playerID {
			g.state.CurrentPlayerIdx = i
			return
		}
	}
}

func (g *Game) armNextPlayTimer() {
	deadline := time.Now().Add(g.turnTimerDuration())
	g.sink.RoomEvent(g.state.RoomID, "turn_timer_update", map[string]any{
		"roomId": g.state.RoomID, "gameId": g.state.ID, "playerId": g.currentPlayerID(),
		"phase": "playing", "deadline": deadline.UnixMilli(), "duration": g.turnTimerDuration().Milliseconds(),
	})
	g.armTurnTimer(deadline, ActionPlayTimeout)
}

// handlePlayCard validates and applies a play_card intent.
func (g *Game) handlePlayCard(playerID string, card cards.Card) error {
	if g.state.Phase != store.PhasePlaying {
		return apperr.ErrInvalidPhase
	}
	round := g.currentRound()
	trick := currentTrick(round)
	if trick == nil {
		return apperr.ErrInvalidPhase
	}

	hand := round.Hands[playerID]
	alreadyPlayed := hasPlayed(trick, playerID)
	if err := rules.ValidatePlay(hand, card, g.currentPlayerID(), playerID, alreadyPlayed); err != nil {
		return err
	}

	g.cancelTurnTimer()
	g.applyPlay(playerID, card, false)
	return nil
}

func hasPlayed(trick *store.Trick, playerID string) bool {
	for _, p := range trick.Plays {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

func currentTrick(round *store.GameRound) *store.Trick {
	if len(round.Tricks) == 0 {
		return nil
	}
	return round.Tricks[len(round.Tricks)-1]
}

// applyPlay removes card from playerID's hand, appends the play to
// the current trick, and either advances to the next player or
// resolves the trick if it is now complete.
func (g *Game) applyPlay(playerID string, card cards.Card, auto bool) {
	round := g.currentRound()
	trick := currentTrick(round)

	round.Hands[playerID] = rules.RemoveCard(round.Hands[playerID], card)
	trick.Plays = append(trick.Plays, store.TrickPlay{PlayerID: playerID, Card: card, PlayedAt: time.Now()})

	if auto {
		g.state.Stats.AutoActions++
		g.sink.RoomEvent(g.state.RoomID, "auto_action", map[string]any{
			"playerId": playerID, "action": "auto_card", "value": card.String(), "reason": "timeout",
		})
	}

	if len(trick.Plays) < len(g.state.PlayerOrder) {
		next := g.nextPlayerWithCards(playerID, round)
		g.setCursorToPlayer(next)
		g.sink.RoomEvent(g.state.RoomID, "card_played", map[string]any{
			"playerId": playerID, "card": card, "nextPlayer": next,
		})
		g.armNextPlayTimer()
		return
	}

	g.resolveCurrentTrick(trick, round, playerID, card)
}

// nextPlayerWithCards advances cyclically from afterPlayerID to the
// next seated player who still holds at least one card this round,
// skipping players whose hand emptied early (e.g. after elimination
// mid-round is not possible, but a shorter hand from a smaller
// cardCount can empty before others in edge configurations).
func (g *Game) nextPlayerWithCards(afterPlayerID string, round *store.GameRound) string {
	n := len(g.state.PlayerOrder)
	start := 0
	for i, pid := range g.state.PlayerOrder {
		if pid == afterPlayerID {
			start = i
			break
		}
	}
	for i := 1; i <= n; i++ {
		candidate := g.state.PlayerOrder[(start+i)%n]
		if len(round.Hands[candidate]) > 0 {
			return candidate
		}
	}
	return afterPlayerID
}

func (g *Game) resolveCurrentTrick(trick *store.Trick, round *store.GameRound, lastPlayerID string, lastCard cards.Card) {
	plays := make([]rules.Play, 0, len(trick.Plays))
	for _, p := range trick.Plays {
		plays = append(plays, rules.Play{PlayerID: p.PlayerID, Card: p.Card, Timestamp: p.PlayedAt})
	}
	result := rules.ResolveTrick(plays, round.ManilhaRank)

	now := time.Now()
	trick.CompletedAt = &now
	trick.WinnerID = result.WinnerID
	g.state.Stats.TricksPlayed++
	for _, c := range result.CancelledCards {
		trick.CancelledCards = append(trick.CancelledCards, store.TrickPlay{PlayerID: c.PlayerID, Card: c.Card, PlayedAt: c.Timestamp})
	}
	if len(result.CancelledCards) > 0 {
		g.state.Stats.Cancellations += len(result.CancelledCards)
	}

	if result.WinnerID != "" {
		if p, ok := g.st.Player(result.WinnerID); ok {
			p.TricksWon++
			g.st.PutPlayer(p)
		}
	}

	nextTrick := g.roundHasMoreTricks(round)
	g.sink.RoomEvent(g.state.RoomID, "card_played", map[string]any{
		"playerId": lastPlayerID, "card": lastCard, "nextPlayer": nil,
		"currentLeader": result.WinnerID, "winningCard": result.WinningCard, "cancelledCards": result.CancelledCards,
	})
	g.sink.RoomEvent(g.state.RoomID, "trick_completed", map[string]any{
		"trickNumber": trick.Number, "cardsPlayed": trick.Plays, "winner": result.WinnerID,
		"cancelledCards": trick.CancelledCards, "nextTrick": nextTrick,
	})

	if result.WinnerID != "" {
		g.setCursorToPlayer(result.WinnerID)
	} else {
		g.setCursorToPlayer(trick.LeadPlayerID)
	}

	if nextTrick {
		g.armTrickStartDelay()
		return
	}
	g.finalizeRound()
}

func (g *Game) roundHasMoreTricks(round *store.GameRound) bool {
	for _, h := range round.Hands {
		if len(h) > 0 {
			return true
		}
	}
	return false
}

func (g *Game) handlePlayTimeout() {
	if g.state.Phase != store.PhasePlaying {
		return
	}
	round := g.currentRound()
	playerID := g.currentPlayerID()
	hand := round.Hands[playerID]
	if len(hand) == 0 {
		return
	}
	trick := currentTrick(round)
	auto := hand[0]
	for _, c := range hand {
		if err := rules.ValidatePlay(hand, c, playerID, playerID, hasPlayed(trick, playerID)); err == nil {
			auto = c
			break
		}
	}
	g.applyPlay(playerID, auto, true)
}

func (g *Game) handleTrickStartDelayElapsed() {
	if g.state.Phase != store.PhasePlaying {
		return
	}
	g.openTrick(g.state.PlayerOrder[g.state.CurrentPlayerIdx])
}
