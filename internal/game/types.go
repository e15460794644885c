package game

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotEnoughPlayers     = errors.New("not enough players online")
	ErrAlreadyEngaged       = errors.New("participant already has an invitation or match")
	ErrInviteNotFound       = errors.New("invitation not found")
	ErrInviterGone          = errors.New("inviter has disconnected")
	ErrInvalidMove          = errors.New("invalid move")
	ErrNoSuchMatch          = errors.New("no active match for participant")
	ErrMoveAlreadySubmitted = errors.New("move already submitted this round")
)

// Move is one symbol of the fixed three-symbol alphabet.
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// beats encodes the cyclic dominance relation. Fixed, not configurable.
var beats = map[Move]Move{
	MoveRock:     MoveScissors,
	MoveScissors: MovePaper,
	MovePaper:    MoveRock,
}

// ParseMove validates a wire move string.
func ParseMove(s string) (Move, bool) {
	m := Move(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := beats[m]; !ok {
		return "", false
	}
	return m, true
}

// Beats reports whether a wins against b. Equal moves never beat each other.
func Beats(a, b Move) bool { return beats[a] == b }

// Invitation is a pending, unconsumed proposal to start a match.
type Invitation struct {
	GameID    string
	InviterID string
	InviteeID string
	CreatedAt time.Time
}

// Match is one active two-player game. Players holds connection ids with the
// inviter first; Score is keyed by the nicknames captured at accept time.
type Match struct {
	GameID    string
	Players   [2]string
	Names     map[string]string // conn id -> nickname
	Pending   map[string]Move   // conn id -> move this round
	Score     map[string]int    // nickname -> wins
	StartedAt time.Time
}

// Opponent returns the other player's connection id, or "" when connID is
// not a player.
func (m *Match) Opponent(connID string) string {
	switch connID {
	case m.Players[0]:
		return m.Players[1]
	case m.Players[1]:
		return m.Players[0]
	}
	return ""
}

// HasPlayer reports whether connID participates in the match.
func (m *Match) HasPlayer(connID string) bool {
	return connID == m.Players[0] || connID == m.Players[1]
}

// PlayerNicknames returns both display names, inviter first.
func (m *Match) PlayerNicknames() [2]string {
	return [2]string{m.Names[m.Players[0]], m.Names[m.Players[1]]}
}

func copyScore(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MoveResult reports the outcome of MakeMove.
type MoveResult struct {
	GameID     string
	PlayerIDs  [2]string
	OpponentID string // the other player, from the mover's perspective

	Resolved bool
	Draw     bool
	Winner   string          // winner nickname, empty on draw or unresolved
	Moves    map[string]Move // nickname -> move, set when resolved
	Score    map[string]int  // nickname -> wins, set when resolved
}

// MatchSummary describes a match that just ended (quit or disconnect).
type MatchSummary struct {
	GameID     string
	Names      [2]string
	Score      map[string]int
	StartedAt  time.Time
	EndedAt    time.Time
	OpponentID string // the player that did not initiate the ending
}
