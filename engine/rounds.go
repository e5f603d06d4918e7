package engine

import (
	"time"

	"truco-fdp-server/cards"
	"truco-fdp-server/rules"
	"truco-fdp-server/store"
)

// startRound deals a fresh round of roundNumber for the still-active
// players and transitions into bidding. roundNumber 1 is always the
// blind round.
func (g *Game) startRound(roundNumber int) {
	cardCount := 1
	if prev := g.previousRound(); prev != nil {
		cardCount = rules.NextCardCount(prev.CardCount, g.activePlayerCount())
	}

	deck := cards.NewDeck()
	cards.Shuffle(deck)
	vira, playable, manilhaRank := cards.DrawVira(deck)
	hands, _ := cards.Deal(playable, len(g.state.PlayerOrder), cardCount)

	round := &store.GameRound{
		Number:       roundNumber,
		CardCount:    cardCount,
		Vira:         vira,
		ManilhaRank:  manilhaRank,
		IsBlindRound: roundNumber == 1,
		Hands:        make(map[string][]cards.Card, len(g.state.PlayerOrder)),
		Bids:         make(map[string]int),
	}
	for i, pid := range g.state.PlayerOrder {
		round.Hands[pid] = hands[i]
		if p, ok := g.st.Player(pid); ok {
			p.Hand = hands[i]
			p.Bid = nil
			p.TricksWon = 0
			g.st.PutPlayer(p)
		}
	}

	g.state.CurrentRound = roundNumber
	g.state.Rounds = append(g.state.Rounds, round)
	g.state.Phase = store.PhaseBidding
	g.state.CurrentPlayerIdx = 0

	if roundNumber == 1 {
		g.sink.RoomEvent(g.state.RoomID, "game_started", map[string]any{
			"gameId": g.state.ID, "playerOrder": g.state.PlayerOrder, "hostSettings": g.hostSettings,
		})
	}
	g.sink.RoomEvent(g.state.RoomID, "round_started", map[string]any{
		"roundNumber": roundNumber, "cardCount": cardCount, "viraCard": vira, "isBlindRound": round.IsBlindRound,
	})
	g.dealPrivateHands(round)
	g.enterBiddingPhase()
}

func (g *Game) previousRound() *store.GameRound {
	if len(g.state.Rounds) == 0 {
		return nil
	}
	return g.state.Rounds[len(g.state.Rounds)-1]
}

// finalizeRound scores the just-completed round, applies life losses,
// eliminates players at 0 lives, and either completes the game or
// schedules the next round.
func (g *Game) finalizeRound() {
	g.state.Phase = store.PhaseScoring
	round := g.currentRound()

	tricksWon := make(map[string]int, len(g.state.PlayerOrder))
	livesBefore := make(map[string]int, len(g.state.PlayerOrder))
	for _, pid := range g.state.PlayerOrder {
		if p, ok := g.st.Player(pid); ok {
			tricksWon[pid] = p.TricksWon
			livesBefore[pid] = p.Lives
		}
	}
	results := rules.ScoreRound(round.Bids, tricksWon, livesBefore)

	room := g.room()
	var eliminated []string
	storeResults := make([]store.RoundResult, 0, len(results))
	for _, r := range results {
		storeResults = append(storeResults, store.RoundResult{
			PlayerID: r.PlayerID, Bid: r.Bid, TricksActual: r.TricksWon,
			LivesLost: r.LivesLost, LivesRemaining: r.LivesAfter,
		})
		if p, ok := g.st.Player(r.PlayerID); ok {
			p.Lives = r.LivesAfter
			if p.Lives == 0 {
				p.IsSpectator = true
				eliminated = append(eliminated, p.ID)
			}
			g.st.PutPlayer(p)
		}
	}
	round.Results = storeResults

	if room != nil {
		room.Seated = removeAllIDs(room.Seated, eliminated)
		for _, id := range eliminated {
			if room.Spectators == nil {
				room.Spectators = make(map[string]bool)
			}
			room.Spectators[id] = true
		}
		g.st.PutRoom(room)
	}

	g.sink.RoomEvent(g.state.RoomID, "round_completed", map[string]any{
		"roundNumber": round.Number, "results": storeResults, "eliminatedPlayers": eliminated,
	})

	g.state.PlayerOrder = removeAllIDs(g.state.PlayerOrder, eliminated)

	remaining := g.activePlayerCount()
	if remaining <= 1 {
		reason := store.ReasonVictory
		if remaining == 0 {
			reason = store.ReasonInsufficientPlayers
		}
		g.completeGame(reason)
		return
	}

	delay := time.Duration(g.hostSettings.RoundTransitionDelayMS) * time.Millisecond
	if delay <= 0 {
		g.startRound(round.Number + 1)
		return
	}
	g.pendingNextRound = round.Number + 1
	time.AfterFunc(delay, func() {
		select {
		case g.Actions <- Action{Type: ActionNextRoundDelayElapsed}:
		case <-g.Done:
		}
	})
}

func (g *Game) handleNextRoundDelayElapsed() {
	if g.state.Phase != store.PhaseScoring || g.pendingNextRound == 0 {
		return
	}
	next := g.pendingNextRound
	g.pendingNextRound = 0
	g.startRound(next)
}

func (g *Game) dealPrivateHands(round *store.GameRound) {
	for _, pid := range g.state.PlayerOrder {
		g.sink.PrivateEvent(g.state.RoomID, pid, "cards_dealt", g.buildCardsDealtPayload(round, pid))
	}
}

func removeAllIDs(ids []string, remove []string) []string {
	if len(remove) == 0 {
		return ids
	}
	removeSet := make(map[string]bool, len(remove))
	for _, id := range remove {
		removeSet[id] = true
	}
	out := ids[:0:0]
	for _, id := range ids {
		if !removeSet[id] {
			out = append(out, id)
		}
	}
	return out
}
