package session

// Outbound notification names.
const (
	NoteUsersOnline        = "users-online"
	NoteMessage            = "message"
	NoteChatHistory        = "chat-history"
	NoteTyping             = "typing"
	NoteMessageDeleted     = "message-deleted"
	NoteMessageEdited      = "message-edited"
	NoteActionError        = "action-error"
	NoteInvitation         = "rps-invitation"
	NoteGameStarted        = "rps-game-started"
	NoteRoundResult        = "rps-round-result"
	NoteOpponentQuit       = "rps-opponent-quit"
	NoteWaitingForOpponent = "rps-waiting-for-opponent"
	NoteStatusMessage      = "status-message"
	NoteInviteDeclined     = "rps-invite-declined"
	NoteAmbientChanged     = "ambient-changed"
	NoteThemeChanged       = "theme-changed"
)

// Scope addresses a notification.
type Scope int

const (
	ScopeConn            Scope = iota // a single connection (Target)
	ScopeBroadcast                    // every connected participant
	ScopeBroadcastExcept              // everyone but Target
)

// Notification is one outbound delivery obligation. The transport maps
// scopes onto unicast and broadcast writes.
type Notification struct {
	Scope   Scope
	Target  string // conn id: recipient for ScopeConn, excluded for ScopeBroadcastExcept
	Name    string
	Payload any
}

func toConn(connID, name string, payload any) Notification {
	return Notification{Scope: ScopeConn, Target: connID, Name: name, Payload: payload}
}

func toAll(name string, payload any) Notification {
	return Notification{Scope: ScopeBroadcast, Name: name, Payload: payload}
}

func toAllExcept(connID, name string, payload any) Notification {
	return Notification{Scope: ScopeBroadcastExcept, Target: connID, Name: name, Payload: payload}
}

// Payloads.

type TypingPayload struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

type MessageEditedPayload struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
	User      string `json:"user"`
}

type ActionErrorPayload struct {
	Message string `json:"message"`
}

type InvitationPayload struct {
	GameID          string `json:"gameId"`
	InviterNickname string `json:"inviterNickname"`
}

type GameStartedPayload struct {
	GameID  string   `json:"gameId"`
	Players []string `json:"players"`
}

type RoundResultPayload struct {
	GameID        string            `json:"gameId"`
	Moves         map[string]string `json:"moves"`
	ResultMessage string            `json:"resultMessage"`
	Score         map[string]int    `json:"score"`
}

type OpponentQuitPayload struct {
	QuitterNickname string `json:"quitterNickname"`
}

type StatusPayload struct {
	Message string `json:"message"`
}

type InviteDeclinedPayload struct {
	DeclinerNickname string `json:"declinerNickname"`
}

type AmbientPayload struct {
	Track string `json:"track"`
}

type ThemePayload struct {
	Theme string `json:"theme"`
}
