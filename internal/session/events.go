package session

import "github.com/irolyuk/Cloud-Baby/internal/presence"

// EventType tags inbound events. The wire names match the client protocol.
type EventType string

const (
	EvConnect       EventType = "connect"
	EvRegister      EventType = "register"
	EvSendMessage   EventType = "send-message"
	EvGetHistory    EventType = "get-history"
	EvTyping        EventType = "typing"
	EvDeleteMessage EventType = "delete-message"
	EvEditMessage   EventType = "edit-message"
	EvProposeGame   EventType = "propose-game"
	EvAcceptInvite  EventType = "accept-invite"
	EvDeclineInvite EventType = "decline-invite"
	EvMakeMove      EventType = "make-move"
	EvQuitGame      EventType = "quit-game"
	EvSetAmbient    EventType = "set-ambient"
	EvSetTheme      EventType = "set-theme"
	EvDisconnect    EventType = "disconnect"

	// EvSweep is injected by the hub timer, never received from a client.
	EvSweep EventType = "sweep"
)

// Event is one inbound frame. The transport fills ConnID and Meta; every
// other field comes off the wire.
type Event struct {
	Type   EventType         `json:"type"`
	ConnID string            `json:"-"`
	Meta   presence.Metadata `json:"-"`

	Nickname  string `json:"nickname,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Body      string `json:"body,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	NewText   string `json:"newText,omitempty"`
	GameID    string `json:"gameId,omitempty"`
	Move      string `json:"move,omitempty"`
	Typing    bool   `json:"isTyping,omitempty"`
	Value     string `json:"value,omitempty"`
}
