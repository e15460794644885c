package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irolyuk/Cloud-Baby/internal/obslog"
	"github.com/irolyuk/Cloud-Baby/internal/presence"
)

// Engine owns every Invitation and Match. It validates participants against
// the presence registry and enforces the single-engagement invariant: at most
// one outstanding invitation (either role) and at most one match per
// participant, checked at Propose and Accept.
type Engine struct {
	mu  sync.Mutex
	reg *presence.Registry

	invites      map[string]*Invitation // game id -> invitation
	inviteByConn map[string]string      // conn id (either role) -> game id
	matches      map[string]*Match      // game id -> match
	matchByConn  map[string]string      // conn id -> game id
}

func NewEngine(reg *presence.Registry) *Engine {
	return &Engine{
		reg:          reg,
		invites:      make(map[string]*Invitation),
		inviteByConn: make(map[string]string),
		matches:      make(map[string]*Match),
		matchByConn:  make(map[string]string),
	}
}

// Propose creates an invitation from proposer to some other online
// participant. The candidate is the first other participant in roster order;
// the caller does not pick a target.
func (e *Engine) Propose(proposerID string) (Invitation, error) {
	roster := e.reg.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(roster) < 2 {
		return Invitation{}, ErrNotEnoughPlayers
	}
	var candidate string
	for _, p := range roster {
		if p.ConnID != proposerID {
			candidate = p.ConnID
			break
		}
	}
	if candidate == "" {
		return Invitation{}, ErrNotEnoughPlayers
	}
	if e.engagedLocked(proposerID) || e.engagedLocked(candidate) {
		return Invitation{}, ErrAlreadyEngaged
	}

	inv := &Invitation{
		GameID:    uuid.NewString(),
		InviterID: proposerID,
		InviteeID: candidate,
		CreatedAt: time.Now(),
	}
	e.invites[inv.GameID] = inv
	e.inviteByConn[inv.InviterID] = inv.GameID
	e.inviteByConn[inv.InviteeID] = inv.GameID
	obslog.L().Info("rps_invite_create",
		zap.String("game_id", inv.GameID),
		zap.String("inviter", inv.InviterID),
		zap.String("invitee", inv.InviteeID),
	)
	return *inv, nil
}

// Accept consumes the matching pending invitation and promotes it to a
// Match with both pending moves absent and the score zeroed.
func (e *Engine) Accept(inviteeID, gameID string) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inv, ok := e.invites[gameID]
	if !ok || inv.InviteeID != inviteeID {
		return nil, ErrInviteNotFound
	}
	inviter, online := e.reg.Resolve(inv.InviterID)
	if !online {
		// the disconnect cascade normally discards this first; stale entries
		// are still consumed here
		e.removeInviteLocked(inv)
		return nil, ErrInviterGone
	}
	invitee, online := e.reg.Resolve(inviteeID)
	if !online {
		return nil, ErrInviteNotFound
	}
	e.removeInviteLocked(inv)

	m := &Match{
		GameID:    gameID,
		Players:   [2]string{inv.InviterID, inv.InviteeID},
		Names:     map[string]string{inv.InviterID: inviter.Nickname, inv.InviteeID: invitee.Nickname},
		Pending:   make(map[string]Move),
		Score:     map[string]int{inviter.Nickname: 0, invitee.Nickname: 0},
		StartedAt: time.Now(),
	}
	e.matches[gameID] = m
	e.matchByConn[inv.InviterID] = gameID
	e.matchByConn[inv.InviteeID] = gameID
	obslog.L().Info("rps_match_start",
		zap.String("game_id", gameID),
		zap.String("inviter", inv.InviterID),
		zap.String("invitee", inv.InviteeID),
	)
	return m.snapshot(), nil
}

// Decline consumes the matching invitation if present. A stale or foreign
// game id is a no-op, not an error.
func (e *Engine) Decline(inviteeID, gameID string) (Invitation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := e.invites[gameID]
	if !ok || inv.InviteeID != inviteeID {
		return Invitation{}, false
	}
	e.removeInviteLocked(inv)
	obslog.L().Info("rps_invite_decline", zap.String("game_id", gameID), zap.String("invitee", inviteeID))
	return *inv, true
}

// MakeMove records a move for connID. When both moves are present the round
// resolves, the winner's nickname score increments, and both pending slots
// reset to absent.
func (e *Engine) MakeMove(connID, gameID, rawMove string) (MoveResult, error) {
	mv, ok := ParseMove(rawMove)
	if !ok {
		return MoveResult{}, ErrInvalidMove
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.matches[gameID]
	if !ok || !m.HasPlayer(connID) {
		return MoveResult{}, ErrNoSuchMatch
	}
	if _, dup := m.Pending[connID]; dup {
		return MoveResult{}, ErrMoveAlreadySubmitted
	}
	m.Pending[connID] = mv

	res := MoveResult{
		GameID:     gameID,
		PlayerIDs:  m.Players,
		OpponentID: m.Opponent(connID),
	}
	if _, both := m.Pending[res.OpponentID]; !both {
		return res, nil
	}

	a, b := m.Pending[m.Players[0]], m.Pending[m.Players[1]]
	res.Resolved = true
	res.Moves = map[string]Move{
		m.Names[m.Players[0]]: a,
		m.Names[m.Players[1]]: b,
	}
	switch {
	case a == b:
		res.Draw = true
	case Beats(a, b):
		res.Winner = m.Names[m.Players[0]]
	default:
		res.Winner = m.Names[m.Players[1]]
	}
	if res.Winner != "" {
		m.Score[res.Winner]++
	}
	m.Pending = make(map[string]Move)
	res.Score = copyScore(m.Score)
	obslog.L().Info("rps_round",
		zap.String("game_id", gameID),
		zap.String("move_a", string(a)),
		zap.String("move_b", string(b)),
		zap.String("winner", res.Winner),
	)
	return res, nil
}

// Quit removes the match unconditionally when connID participates in it.
func (e *Engine) Quit(connID, gameID string) (MatchSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.matches[gameID]
	if !ok || !m.HasPlayer(connID) {
		return MatchSummary{}, ErrNoSuchMatch
	}
	sum := e.removeMatchLocked(m, connID)
	obslog.L().Info("rps_quit", zap.String("game_id", gameID), zap.String("quitter", connID))
	return sum, nil
}

// CascadeResult reports the cleanup performed for a disconnecting
// connection.
type CascadeResult struct {
	EndedMatch *MatchSummary

	CancelledInvite *Invitation
	CounterpartyID  string // other party of the cancelled invitation
}

// DropConnection terminates any match containing connID and discards any
// invitation where it is either party. Called synchronously from the
// disconnect path; cleanup is complete before the event is considered
// handled.
func (e *Engine) DropConnection(connID string) CascadeResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res CascadeResult
	if gid, ok := e.matchByConn[connID]; ok {
		if m := e.matches[gid]; m != nil {
			sum := e.removeMatchLocked(m, connID)
			res.EndedMatch = &sum
			obslog.L().Info("rps_match_drop", zap.String("game_id", gid), zap.String("conn", connID))
		}
	}
	if gid, ok := e.inviteByConn[connID]; ok {
		if inv := e.invites[gid]; inv != nil {
			cp := inv.InviterID
			if cp == connID {
				cp = inv.InviteeID
			}
			invCopy := *inv
			e.removeInviteLocked(inv)
			res.CancelledInvite = &invCopy
			res.CounterpartyID = cp
			obslog.L().Info("rps_invite_drop", zap.String("game_id", gid), zap.String("conn", connID))
		}
	}
	return res
}

// ExpireInvites discards invitations created before cutoff and returns them
// for notification.
func (e *Engine) ExpireInvites(cutoff time.Time) []Invitation {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Invitation
	for _, inv := range e.invites {
		if inv.CreatedAt.Before(cutoff) {
			out = append(out, *inv)
		}
	}
	for i := range out {
		e.removeInviteLocked(&out[i])
	}
	if len(out) > 0 {
		obslog.L().Info("rps_invite_expire", zap.Int("count", len(out)))
	}
	return out
}

// Stats reports current engine occupancy for the admin surface.
func (e *Engine) Stats() (pendingInvites, activeMatches int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.invites), len(e.matches)
}

func (e *Engine) engagedLocked(connID string) bool {
	if _, ok := e.inviteByConn[connID]; ok {
		return true
	}
	_, ok := e.matchByConn[connID]
	return ok
}

func (e *Engine) removeInviteLocked(inv *Invitation) {
	delete(e.invites, inv.GameID)
	delete(e.inviteByConn, inv.InviterID)
	delete(e.inviteByConn, inv.InviteeID)
}

func (e *Engine) removeMatchLocked(m *Match, endedBy string) MatchSummary {
	delete(e.matches, m.GameID)
	delete(e.matchByConn, m.Players[0])
	delete(e.matchByConn, m.Players[1])
	return MatchSummary{
		GameID:     m.GameID,
		Names:      m.PlayerNicknames(),
		Score:      copyScore(m.Score),
		StartedAt:  m.StartedAt,
		EndedAt:    time.Now(),
		OpponentID: m.Opponent(endedBy),
	}
}

func (m *Match) snapshot() *Match {
	cp := &Match{
		GameID:    m.GameID,
		Players:   m.Players,
		Names:     make(map[string]string, len(m.Names)),
		Pending:   make(map[string]Move, len(m.Pending)),
		Score:     copyScore(m.Score),
		StartedAt: m.StartedAt,
	}
	for k, v := range m.Names {
		cp.Names[k] = v
	}
	for k, v := range m.Pending {
		cp.Pending[k] = v
	}
	return cp
}
