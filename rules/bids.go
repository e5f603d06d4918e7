// Package rules implements the pure round rules: legal-bid computation,
// card-play validation, trick resolution with rank cancellation and the
// manilha hierarchy, and round scoring / next-round sizing. It holds no
// state of its own and performs no I/O.
package rules

// BidInfo is the result of computing the legal bids available to a
// player at their turn to bid.
type BidInfo struct {
	Legal        []int
	Forbidden    *int
	IsLastBidder bool
}

// ValidBids computes the set of legal bids for playerID. bidsSoFar maps
// player id to already-submitted bid, in no particular order;
// playerOrder is the full seating order participating in the round.
// A player is the last bidder iff every other seated player has
// already bid. When the round is not blind and this player is last,
// the sum of all bids may not equal cardCount, so the single forbidden
// value b* = cardCount - sum(others) is excluded from the legal set
// when it falls in [0, cardCount].
func ValidBids(cardCount int, playerOrder []string, playerID string, bidsSoFar map[string]int, isBlindRound bool) BidInfo {
	isLast := true
	sumOthers := 0
	for _, p := range playerOrder {
		if p == playerID {
			continue
		}
		bid, ok := bidsSoFar[p]
		if !ok {
			isLast = false
			continue
		}
		sumOthers += bid
	}

	full := make([]int, cardCount+1)
	for i := range full {
		full[i] = i
	}

	if isBlindRound || !isLast {
		return BidInfo{Legal: full, IsLastBidder: isLast}
	}

	forbidden := cardCount - sumOthers
	if forbidden < 0 || forbidden > cardCount {
		return BidInfo{Legal: full, IsLastBidder: true}
	}

	legal := make([]int, 0, cardCount)
	for _, b := range full {
		if b != forbidden {
			legal = append(legal, b)
		}
	}
	f := forbidden
	return BidInfo{Legal: legal, Forbidden: &f, IsLastBidder: true}
}

// IsBidLegal reports whether bid is a member of info.Legal.
func (info BidInfo) IsBidLegal(bid int) bool {
	for _, b := range info.Legal {
		if b == bid {
			return true
		}
	}
	return false
}
