package rules

import (
	"truco-fdp-server/apperr"
	"truco-fdp-server/cards"
)

// ValidatePlay checks whether player playerID may play card from hand
// during the current trick. It fails with a specific apperr code:
// card_not_in_hand when card isn't in hand, not_players_turn when it
// isn't playerID's turn, or card_already_played when playerID has
// already played this trick.
func ValidatePlay(hand []cards.Card, card cards.Card, currentPlayerID, playerID string, alreadyPlayed bool) error {
	if playerID == "" {
		return apperr.ErrInvalidTurn
	}
	if !handContains(hand, card) {
		return apperr.ErrCardNotInHand
	}
	if playerID != currentPlayerID {
		return apperr.ErrNotPlayersTurn
	}
	if alreadyPlayed {
		return apperr.ErrCardAlreadyPlayed
	}
	return nil
}

func handContains(hand []cards.Card, card cards.Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// RemoveCard returns hand with the first occurrence of card removed.
// It does not mutate the input slice's backing array in place beyond
// what append naturally does on the returned copy's own buffer.
func RemoveCard(hand []cards.Card, card cards.Card) []cards.Card {
	out := make([]cards.Card, 0, len(hand))
	removed := false
	for _, c := range hand {
		if !removed && c == card {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}
