package rules

import (
	"time"

	"truco-fdp-server/cards"
)

// Play is a single card played into a trick.
type Play struct {
	PlayerID  string
	Card      cards.Card
	Timestamp time.Time
}

// TrickResult is the outcome of resolving a completed trick.
type TrickResult struct {
	WinnerID       string // "" if the trick has no winner
	WinningCard    *cards.Card
	CancelledCards []Play
}

// ResolveTrick determines the winner of a completed trick under the
// given manilha rank.
//
// 1. Plays are grouped by rank. Any group of two or more plays whose
//    members are NOT all manilhas is cancelled: every play in the
//    group is removed from contention and recorded. Manilhas are
//    never cancelled even when tied at equal rank, since their
//    strengths always differ by suit.
// 2. Among the survivors, the maximum by strength wins. If several
//    survivors tie at the maximum (structurally only possible by
//    injected/inconsistent state, since manilha ties can't happen and
//    non-manilha ties of size >= 2 were already cancelled in step 1),
//    all tied top cards are cancelled and resolution recurses on the
//    strictly weaker survivors. If nothing survives, the trick has no
//    winner.
func ResolveTrick(plays []Play, manilhaRank cards.Rank) TrickResult {
	cancelled := make([]Play, 0)
	survivors := cancelNonManilhaTies(plays, manilhaRank, &cancelled)

	for {
		if len(survivors) == 0 {
			return TrickResult{CancelledCards: cancelled}
		}
		maxStrength := survivors[0].Card.Strength(manilhaRank)
		for _, p := range survivors[1:] {
			if s := p.Card.Strength(manilhaRank); s > maxStrength {
				maxStrength = s
			}
		}
		var tied, rest []Play
		for _, p := range survivors {
			if p.Card.Strength(manilhaRank) == maxStrength {
				tied = append(tied, p)
			} else {
				rest = append(rest, p)
			}
		}
		if len(tied) == 1 {
			winner := tied[0]
			card := winner.Card
			return TrickResult{
				WinnerID:       winner.PlayerID,
				WinningCard:    &card,
				CancelledCards: cancelled,
			}
		}
		cancelled = append(cancelled, tied...)
		survivors = rest
	}
}

// cancelNonManilhaTies groups plays by rank and removes any group of
// size >= 2 that is not entirely manilhas, appending the removed plays
// to cancelled and returning the remaining survivors in play order.
func cancelNonManilhaTies(plays []Play, manilhaRank cards.Rank, cancelled *[]Play) []Play {
	byRank := make(map[cards.Rank][]Play)
	for _, p := range plays {
		byRank[p.Card.Rank] = append(byRank[p.Card.Rank], p)
	}

	survivors := make([]Play, 0, len(plays))
	for _, p := range plays {
		group := byRank[p.Card.Rank]
		if len(group) >= 2 && !allManilhas(group, manilhaRank) {
			*cancelled = append(*cancelled, p)
			continue
		}
		survivors = append(survivors, p)
	}
	return survivors
}

func allManilhas(plays []Play, manilhaRank cards.Rank) bool {
	for _, p := range plays {
		if !p.Card.IsManilha(manilhaRank) {
			return false
		}
	}
	return true
}
