package engine

import (
	"truco-fdp-server/cards"
	"truco-fdp-server/store"
)

// cardsDealtPayload is the private per-player deal message. During the
// blind round, the recipient's own hand is replaced by hidden
// placeholders and VisibleCards carries everyone else's actual cards;
// outside the blind round, only the recipient's own cards are
// populated and everyone else's hands stay unlisted.
type cardsDealtPayload struct {
	Hand         []cardView        `json:"hand"`
	VisibleCards []visibleHandView `json:"visibleCards,omitempty"`
}

type cardView struct {
	Hidden bool   `json:"hidden"`
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
}

type visibleHandView struct {
	OwnerID          string     `json:"ownerId"`
	OwnerDisplayName string     `json:"ownerDisplayName"`
	Cards            []cardView `json:"cards"`
}

func (g *Game) buildCardsDealtPayload(round *store.GameRound, forPlayerID string) cardsDealtPayload {
	payload := cardsDealtPayload{}

	ownHand := round.Hands[forPlayerID]
	if round.IsBlindRound {
		payload.Hand = hiddenPlaceholders(len(ownHand))
		for _, pid := range g.state.PlayerOrder {
			if pid == forPlayerID {
				continue
			}
			payload.VisibleCards = append(payload.VisibleCards, visibleHandView{
				OwnerID:          pid,
				OwnerDisplayName: g.displayNameOf(pid),
				Cards:            toCardViews(round.Hands[pid]),
			})
		}
		return payload
	}

	payload.Hand = toCardViews(ownHand)
	return payload
}

func (g *Game) displayNameOf(playerID string) string {
	if p, ok := g.st.Player(playerID); ok {
		return p.DisplayName
	}
	return ""
}

func hiddenPlaceholders(n int) []cardView {
	out := make([]cardView, n)
	for i := range out {
		out[i] = cardView{Hidden: true}
	}
	return out
}

func toCardViews(hand []cards.Card) []cardView {
	out := make([]cardView, len(hand))
	for i, c := range hand {
		out[i] = cardView{Rank: c.Rank.String(), Suit: c.Suit.String()}
	}
	return out
}

// StateView builds the snapshot carried in a reconnecting player's
// private game_state_update: the game's own fields are plain Go
// structs with no wire naming, so this maps them onto the camelCase
// shape every other event already uses.
func (g *Game) StateView(forPlayerID string) map[string]any {
	round := g.currentRound()
	view := map[string]any{
		"gameId":          g.state.ID,
		"phase":           string(g.state.Phase),
		"currentRound":    g.state.CurrentRound,
		"currentPlayerId": g.currentPlayerID(),
		"playerOrder":     g.state.PlayerOrder,
	}
	if round != nil {
		view["cardCount"] = round.CardCount
		view["isBlindRound"] = round.IsBlindRound
		view["hand"] = g.buildCardsDealtPayload(round, forPlayerID).Hand
		if bid, ok := round.Bids[forPlayerID]; ok {
			view["yourBid"] = bid
		}
	}
	return view
}
