package engine

import "truco-fdp-server/cards"

// ActionType enumerates the kinds of actions a Game's Run loop
// processes. Every mutation to a running game — whether it comes from
// a validated client intent or from a timer firing — is funneled
// through this channel so it is always serialized by the single Run
// goroutine, mirroring the teacher's single-actor game loop.
type ActionType int

const (
	ActionSubmitBid ActionType = iota
	ActionPlayCard
	ActionBidTimeout
	ActionPlayTimeout
	ActionTrickStartDelayElapsed
	ActionNextRoundDelayElapsed
	ActionGameTick
	ActionPlayerCountChanged // a seated player disconnected/reconnected/left mid-game
	ActionStop               // external shutdown, e.g. room destroyed
)

// Action is a single message sent into a Game's Actions channel.
type Action struct {
	Type     ActionType
	PlayerID string      // for ActionSubmitBid/ActionPlayCard
	Bid      int         // for ActionSubmitBid
	Card     cards.Card  // for ActionPlayCard
	replyErr chan error  // for synchronous intents (submit_bid, play_card): receives the validation result
}
