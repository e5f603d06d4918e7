package cards

import (
	"crypto/rand"
	"math/bits"
)

// suitsInDeck are the four suits dealt into a standard 52-card deck.
var suitsInDeck = [4]Suit{Diamonds, Spades, Hearts, Clubs}

// NewDeck returns the 52 distinct cards in deterministic (unshuffled)
// order: Shuffle must be called before dealing.
func NewDeck() []Card {
	deck := make([]Card, 0, int(numRanks)*len(suitsInDeck))
	for r := Rank(0); r < numRanks; r++ {
		for _, s := range suitsInDeck {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffle randomizes deck in place using rejection-sampling
// Fisher-Yates over a cryptographic RNG: for each i from n-1 down to
// 1, it draws j uniformly from [0, i] by reading the smallest whole
// number of bytes that can represent i, and rejecting any draw that
// falls at or past the largest multiple of (i+1) those bytes can
// represent, so every index is equally likely regardless of how i+1
// divides the byte range.
func Shuffle(deck []Card) {
	for i := len(deck) - 1; i > 0; i-- {
		j := randIndex(i)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// randIndex returns a uniformly distributed random integer in [0, n]
// (inclusive), reading from crypto/rand with rejection sampling.
func randIndex(n int) int {
	if n == 0 {
		return 0
	}
	numValues := uint64(n) + 1
	numBytes := (bits.Len64(numValues-1) + 7) / 8
	if numBytes == 0 {
		numBytes = 1
	}
	maxValue := uint64(1) << (8 * numBytes)
	limit := maxValue - (maxValue % numValues)

	buf := make([]byte, numBytes)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("cards: crypto/rand unavailable: " + err.Error())
		}
		var v uint64
		for _, b := range buf {
			v = (v << 8) | uint64(b)
		}
		if v < limit {
			return int(v % numValues)
		}
	}
}

// DrawVira pops the first card of deck as the vira and returns it
// alongside the remaining playable cards and the derived manilha
// rank. deck must already be shuffled.
func DrawVira(deck []Card) (vira Card, rest []Card, manilhaRank Rank) {
	vira = deck[0]
	rest = make([]Card, len(deck)-1)
	copy(rest, deck[1:])
	return vira, rest, ManilhaRank(vira.Rank)
}

// Deal distributes cardCount cards to each of numPlayers players,
// consuming them off the front of deck in player order, round-robin,
// matching the order cards are actually handed out at the table.
func Deal(deck []Card, numPlayers, cardCount int) (hands [][]Card, remaining []Card) {
	hands = make([][]Card, numPlayers)
	for p := range hands {
		hands[p] = make([]Card, 0, cardCount)
	}
	pos := 0
	for round := 0; round < cardCount; round++ {
		for p := 0; p < numPlayers; p++ {
			hands[p] = append(hands[p], deck[pos])
			pos++
		}
	}
	remaining = make([]Card, len(deck)-pos)
	copy(remaining, deck[pos:])
	return hands, remaining
}
