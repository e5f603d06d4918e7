package ws

import "encoding/json"

// InboundEnvelope is the generic envelope for every client-to-server
// intent. Type routes to a handler; Raw holds the full payload so each
// handler can unmarshal into its own specific struct.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures Type while keeping the full payload in Raw.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- The eight client intents (spec.md §6) ---

// JoinRoomMsg carries either a fresh join (RoomID/DisplayName/Spectator)
// or a reconnect (SessionID, carried over from a previous room_joined).
type JoinRoomMsg struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Spectator   bool   `json:"spectator"`
	SessionID   string `json:"sessionId"`
}

// LeaveRoomMsg has no fields; the acting player is the connection itself.
type LeaveRoomMsg struct{}

// StartGameMsg has no fields; only the host may send it.
type StartGameMsg struct{}

// SubmitBidMsg is the bidding intent.
type SubmitBidMsg struct {
	Bid int `json:"bid"`
}

// cardMsg is the wire form of a card: rank/suit as the strings cards.Rank/Suit.String() produce.
type cardMsg struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// PlayCardMsg is the trick-play intent.
type PlayCardMsg struct {
	Card cardMsg `json:"card"`
}

// ChatMessageMsg is a chat post.
type ChatMessageMsg struct {
	Message string `json:"message"`
}

// UpdateHostSettingsMsg carries only the fields the host wants to
// change; a nil pointer leaves that setting untouched.
type UpdateHostSettingsMsg struct {
	AllowSpectatorChat *bool `json:"allowSpectatorChat"`
	TurnTimer          *int  `json:"turnTimer"`
	StartingLives      *int  `json:"startingLives"`
}
