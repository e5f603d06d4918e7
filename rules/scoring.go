package rules

// PlayerRoundResult is one seated player's outcome for a completed
// round: how many tricks they actually won against their bid, and how
// many lives that costs them.
type PlayerRoundResult struct {
	PlayerID   string
	Bid        int
	TricksWon  int
	LivesLost  int
	LivesAfter int
}

// ScoreRound computes each player's lives lost from the absolute
// difference between bid and tricks actually won, floored at zero
// remaining lives.
func ScoreRound(bids map[string]int, tricksWon map[string]int, livesBefore map[string]int) []PlayerRoundResult {
	results := make([]PlayerRoundResult, 0, len(bids))
	for playerID, bid := range bids {
		actual := tricksWon[playerID]
		diff := bid - actual
		if diff < 0 {
			diff = -diff
		}
		before := livesBefore[playerID]
		after := before - diff
		if after < 0 {
			after = 0
		}
		results = append(results, PlayerRoundResult{
			PlayerID:   playerID,
			Bid:        bid,
			TricksWon:  actual,
			LivesLost:  diff,
			LivesAfter: after,
		})
	}
	return results
}

// NextCardCount computes the following round's card count: one more
// than the previous round, capped at floor((52-1)/activePlayers) and
// floored at 1 card.
func NextCardCount(prevCardCount, activePlayers int) int {
	if activePlayers <= 0 {
		return 1
	}
	maxCount := (52 - 1) / activePlayers
	next := prevCardCount + 1
	if next > maxCount {
		next = maxCount
	}
	if next < 1 {
		next = 1
	}
	return next
}
