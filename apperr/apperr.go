// Package apperr defines the server's error taxonomy: every error the
// engine, session manager or store can return carries a stable
// machine-readable code so the dispatch layer can map it straight onto
// an action_error/join_error payload (spec.md §7) without a second
// translation table.
package apperr

import "fmt"

// Category groups codes by cause, mirroring spec.md §7.
type Category string

const (
	Validation    Category = "validation"
	Authorization Category = "authorization"
	State         Category = "state"
	Session       Category = "session"
	Capacity      Category = "capacity"
	Internal      Category = "internal"
)

// Error is a coded, categorized error.
type Error struct {
	category Category
	code     string
	message  string
}

func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.code
}

// Code returns the machine-readable error code.
func (e *Error) Code() string { return e.code }

// Category returns the cause category.
func (e *Error) Category() Category { return e.category }

func newErr(cat Category, code, message string) *Error {
	return &Error{category: cat, code: code, message: message}
}

// Code extracts the machine-readable code from err, or "internal_error"
// if err is not an *Error (or is nil, in which case it returns "").
func Code(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code()
	}
	return "internal_error"
}

// Sentinel errors, one per code named in spec.md §7.
var (
	// Validation
	ErrInvalidRoom      = newErr(Validation, "invalid_room", "room does not exist")
	ErrInvalidName      = newErr(Validation, "invalid_name", "display name must be 3-20 letters, digits or spaces")
	ErrNameTaken        = newErr(Validation, "name_taken", "display name already taken in this room")
	ErrInvalidBid       = newErr(Validation, "invalid_bid", "bid is not in the set of valid bids")
	ErrInvalidInteger   = newErr(Validation, "invalid_integer", "expected an integer value")
	ErrOutOfRange       = newErr(Validation, "out_of_range", "value out of range")
	ErrInvalidCard      = newErr(Validation, "invalid_card", "card is not well-formed")
	ErrInvalidMessage   = newErr(Validation, "invalid_message", "message payload is malformed")

	// Authorization
	ErrNotHost                = newErr(Authorization, "not_host", "only the host may perform this action")
	ErrSpectatorChatDisabled  = newErr(Authorization, "spectator_chat_disabled", "spectator chat is disabled by the host")
	ErrNotPlayersTurn         = newErr(Authorization, "not_players_turn", "it is not your turn")
	ErrRoomInProgress         = newErr(Authorization, "room_in_progress", "room already has a game in progress")

	// State
	ErrInvalidPhase              = newErr(State, "invalid_phase", "action not valid in the current phase")
	ErrAlreadyBid                = newErr(State, "already_bid", "player has already bid this round")
	ErrCardNotInHand             = newErr(State, "card_not_in_hand", "card is not in the player's hand")
	ErrCardAlreadyPlayed         = newErr(State, "card_already_played", "player already played in this trick")
	ErrGameNotActive             = newErr(State, "game_not_active", "no active game in this room")
	ErrInvalidRound               = newErr(State, "invalid_round", "round is not valid")
	ErrInvalidTurn                = newErr(State, "invalid_turn", "it is not this player's turn")
	ErrLastBidderRestriction      = newErr(State, "last_bidder_restriction", "last bidder cannot make the sum of bids equal the card count")
	ErrInsufficientPlayers        = newErr(State, "insufficient_players", "not enough connected players to start or continue")

	// Session
	ErrSessionNotFound        = newErr(Session, "session_not_found", "session not found")
	ErrSessionExpired         = newErr(Session, "session_expired", "session has expired")
	ErrSessionInvalidState    = newErr(Session, "session_invalid_state", "session token is invalid")

	// Capacity
	ErrRoomFull      = newErr(Capacity, "room_full", "room is at capacity")
	ErrRoomNotFound  = newErr(Capacity, "room_not_found", "room not found")

	// Internal
	ErrInternal = newErr(Internal, "internal_error", "internal server error")
)

// Newf builds an ad hoc error in category cat with a formatted message
// but a fixed code, for cases where the message needs a runtime value
// (e.g. naming the offending field) but the code must stay stable for
// client-side branching.
func Newf(cat Category, code, format string, args ...any) *Error {
	return newErr(cat, code, fmt.Sprintf(format, args...))
}
