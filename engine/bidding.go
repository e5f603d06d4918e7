package engine

import (
	"time"

	"truco-fdp-server/apperr"
	"truco-fdp-server/rules"
	"truco-fdp-server/store"
)

// biddingTurnEvent is the bidding_turn payload.
type biddingTurnEvent struct {
	CurrentPlayer string `json:"currentPlayer"`
	ValidBids     []int  `json:"validBids"`
	RestrictedBid *int   `json:"restrictedBid"`
	IsLastBidder  bool   `json:"isLastBidder"`
	Deadline      int64  `json:"deadline"`
	TimeLeftMS    int64  `json:"timeLeft"`
	IsBlindRound  bool   `json:"isBlindRound"`
}

// enterBiddingPhase (re)computes the valid-bid set for the current
// turn cursor and broadcasts bidding_turn, arming the turn timer.
func (g *Game) enterBiddingPhase() {
	round := g.currentRound()
	playerID := g.currentPlayerID()
	info := rules.ValidBids(round.CardCount, g.state.PlayerOrder, playerID, round.Bids, round.IsBlindRound)

	deadline := time.Now().Add(g.turnTimerDuration())
	g.sink.RoomEvent(g.state.RoomID, "bidding_turn", biddingTurnEvent{
		CurrentPlayer: playerID,
		ValidBids:     info.Legal,
		RestrictedBid: info.Forbidden,
		IsLastBidder:  info.IsLastBidder,
		Deadline:      deadline.UnixMilli(),
		TimeLeftMS:    g.turnTimerDuration().Milliseconds(),
		IsBlindRound:  round.IsBlindRound,
	})
	g.armTurnTimer(deadline, ActionBidTimeout)
}

// handleSubmitBid validates and applies a submit_bid intent.
func (g *Game) handleSubmitBid(playerID string, bid int) error {
	if g.state.Phase != store.PhaseBidding {
		return apperr.ErrInvalidPhase
	}
	round := g.currentRound()
	if playerID != g.currentPlayerID() {
		return apperr.ErrNotPlayersTurn
	}
	if _, already := round.Bids[playerID]; already {
		return apperr.ErrAlreadyBid
	}
	info := rules.ValidBids(round.CardCount, g.state.PlayerOrder, playerID, round.Bids, round.IsBlindRound)
	if !info.IsBidLegal(bid) {
		if info.Forbidden != nil && bid == *info.Forbidden {
			g.sink.PrivateEvent(g.state.RoomID, playerID, "action_error", map[string]any{
				"action": "submit_bid", "error": apperr.ErrLastBidderRestriction.Code(),
				"message": apperr.ErrLastBidderRestriction.Error(), "validBids": info.Legal,
			})
			return apperr.ErrLastBidderRestriction
		}
		return apperr.ErrInvalidBid
	}

	g.cancelTurnTimer()
	g.recordBid(playerID, bid, false)
	return nil
}

// recordBid stores playerID's bid, advances the cursor, and either
// moves to the playing phase (all bids in) or arms the next bidder.
func (g *Game) recordBid(playerID string, bid int, auto bool) {
	round := g.currentRound()
	if round.Bids == nil {
		round.Bids = make(map[string]int)
	}
	round.Bids[playerID] = bid

	if auto {
		g.state.Stats.AutoActions++
		g.sink.RoomEvent(g.state.RoomID, "auto_action", map[string]any{
			"playerId": playerID, "action": "auto_bid", "value": bid, "reason": "timeout",
		})
	}
	g.sink.RoomEvent(g.state.RoomID, "bid_submitted", map[string]any{
		"playerId": playerID, "bid": bid, "allBids": round.Bids,
	})

	g.advanceTurnCursor()

	if len(round.Bids) >= len(g.state.PlayerOrder) {
		g.enterPlayingPhase()
		return
	}
	g.enterBiddingPhase()
}

func (g *Game) handleBidTimeout() {
	if g.state.Phase != store.PhaseBidding {
		return
	}
	round := g.currentRound()
	playerID := g.currentPlayerID()
	info := rules.ValidBids(round.CardCount, g.state.PlayerOrder, playerID, round.Bids, round.IsBlindRound)
	auto := 0
	if len(info.Legal) > 0 {
		auto = info.Legal[0]
		for _, b := range info.Legal {
			if b < auto {
				auto = b
			}
		}
	}
	g.recordBid(playerID, auto, true)
}

// advanceTurnCursor moves CurrentPlayerIdx to the next seat modulo
// the player order length.
func (g *Game) advanceTurnCursor() {
	if len(g.state.PlayerOrder) == 0 {
		return
	}
	g.state.CurrentPlayerIdx = (g.state.CurrentPlayerIdx + 1) % len(g.state.PlayerOrder)
}

func (g *Game) turnTimerDuration() time.Duration {
	seconds := g.cfg.ClampTurnTimer(g.hostSettings.TurnTimerSeconds)
	return time.Duration(seconds) * time.Second
}
