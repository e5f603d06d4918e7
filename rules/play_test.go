package rules

import (
	"testing"

	"truco-fdp-server/apperr"
	"truco-fdp-server/cards"
)

func TestValidatePlaySuccess(t *testing.T) {
	hand := []cards.Card{{Rank: cards.Four, Suit: cards.Diamonds}}
	err := ValidatePlay(hand, hand[0], "p1", "p1", false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidatePlayCardNotInHand(t *testing.T) {
	hand := []cards.Card{{Rank: cards.Four, Suit: cards.Diamonds}}
	other := cards.Card{Rank: cards.Five, Suit: cards.Diamonds}
	err := ValidatePlay(hand, other, "p1", "p1", false)
	if apperr.Code(err) != "card_not_in_hand" {
		t.Fatalf("expected card_not_in_hand, got %v", err)
	}
}

func TestValidatePlayNotPlayersTurn(t *testing.T) {
	hand := []cards.Card{{Rank: cards.Four, Suit: cards.Diamonds}}
	err := ValidatePlay(hand, hand[0], "p2", "p1", false)
	if apperr.Code(err) != "not_players_turn" {
		t.Fatalf("expected not_players_turn, got %v", err)
	}
}

func TestValidatePlayAlreadyPlayed(t *testing.T) {
	hand := []cards.Card{{Rank: cards.Four, Suit: cards.Diamonds}}
	err := ValidatePlay(hand, hand[0], "p1", "p1", true)
	if apperr.Code(err) != "card_already_played" {
		t.Fatalf("expected card_already_played, got %v", err)
	}
}

func TestRemoveCard(t *testing.T) {
	hand := []cards.Card{
		{Rank: cards.Four, Suit: cards.Diamonds},
		{Rank: cards.Five, Suit: cards.Diamonds},
	}
	out := RemoveCard(hand, hand[0])
	if len(out) != 1 || out[0] != hand[1] {
		t.Fatalf("unexpected hand after removal: %v", out)
	}
}
