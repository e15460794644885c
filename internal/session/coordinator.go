package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/irolyuk/Cloud-Baby/internal/game"
	"github.com/irolyuk/Cloud-Baby/internal/gamelog"
	"github.com/irolyuk/Cloud-Baby/internal/history"
	"github.com/irolyuk/Cloud-Baby/internal/leaderboard"
	"github.com/irolyuk/Cloud-Baby/internal/msgcat"
	"github.com/irolyuk/Cloud-Baby/internal/obslog"
	"github.com/irolyuk/Cloud-Baby/internal/presence"
)

const sinkTimeout = 3 * time.Second

// Coordinator routes inbound events to the presence registry, history store
// and game engine, and translates results into outbound notifications. It is
// driven by a single consumer goroutine in the hub; Dispatch must not be
// called concurrently.
type Coordinator struct {
	reg  *presence.Registry
	hist *history.Store
	eng  *game.Engine
	cat  *msgcat.Catalog

	board   *leaderboard.Board  // optional, nil-safe
	archive *gamelog.Repository // optional, nil-safe

	inviteTTL time.Duration

	// last-write-wins shared flags, replayed to each joiner
	ambientTrack string
	theme        string
}

func New(reg *presence.Registry, hist *history.Store, eng *game.Engine, cat *msgcat.Catalog, inviteTTL time.Duration) *Coordinator {
	return &Coordinator{reg: reg, hist: hist, eng: eng, cat: cat, inviteTTL: inviteTTL}
}

// AttachLeaderboard wires an optional career win tally.
func (c *Coordinator) AttachLeaderboard(b *leaderboard.Board) { c.board = b }

// AttachArchive wires an optional match outcome repository.
func (c *Coordinator) AttachArchive(r *gamelog.Repository) { c.archive = r }

// Dispatch handles one inbound event to completion and returns the outbound
// notifications it produced.
func (c *Coordinator) Dispatch(ev Event) []Notification {
	switch ev.Type {
	case EvConnect:
		return c.onConnect(ev)
	case EvRegister:
		return c.onRegister(ev)
	case EvSendMessage:
		return c.onSendMessage(ev)
	case EvGetHistory:
		return []Notification{toConn(ev.ConnID, NoteChatHistory, c.hist.Snapshot())}
	case EvTyping:
		p := TypingPayload{User: c.reg.NicknameFor(ev.ConnID), Typing: ev.Typing}
		return []Notification{toAllExcept(ev.ConnID, NoteTyping, p)}
	case EvDeleteMessage:
		return c.onDeleteMessage(ev)
	case EvEditMessage:
		return c.onEditMessage(ev)
	case EvProposeGame:
		return c.onProposeGame(ev)
	case EvAcceptInvite:
		return c.onAcceptInvite(ev)
	case EvDeclineInvite:
		return c.onDeclineInvite(ev)
	case EvMakeMove:
		return c.onMakeMove(ev)
	case EvQuitGame:
		return c.onQuitGame(ev)
	case EvSetAmbient:
		c.ambientTrack = ev.Value
		return []Notification{toAll(NoteAmbientChanged, AmbientPayload{Track: ev.Value})}
	case EvSetTheme:
		c.theme = ev.Value
		return []Notification{toAll(NoteThemeChanged, ThemePayload{Theme: ev.Value})}
	case EvSweep:
		return c.onSweep()
	case EvDisconnect:
		return c.onDisconnect(ev)
	default:
		obslog.L().Warn("event_unknown", zap.String("type", string(ev.Type)), zap.String("conn", ev.ConnID))
		return nil
	}
}

func (c *Coordinator) onConnect(ev Event) []Notification {
	obslog.L().Info("session_connect", zap.String("conn", ev.ConnID), zap.String("remote", ev.Meta.RemoteAddr))
	return []Notification{
		toConn(ev.ConnID, NoteStatusMessage, StatusPayload{Message: c.cat.MustRender("session.connected", nil)}),
	}
}

func (c *Coordinator) onRegister(ev Event) []Notification {
	p := c.reg.Register(ev.ConnID, ev.Nickname, ev.Meta)
	obslog.L().Info("session_register", zap.String("conn", ev.ConnID), zap.String("nickname", p.Nickname))

	notes := []Notification{
		toAll(NoteUsersOnline, c.reg.Nicknames()),
		toAll(NoteStatusMessage, StatusPayload{Message: c.cat.MustRender("session.joined", map[string]any{"User": p.Nickname})}),
	}
	// replay shared flags so late joiners converge on the current values
	if c.ambientTrack != "" {
		notes = append(notes, toConn(ev.ConnID, NoteAmbientChanged, AmbientPayload{Track: c.ambientTrack}))
	}
	if c.theme != "" {
		notes = append(notes, toConn(ev.ConnID, NoteThemeChanged, ThemePayload{Theme: c.theme}))
	}
	return notes
}

func (c *Coordinator) onSendMessage(ev Event) []Notification {
	kind, ok := history.ParseKind(ev.Kind)
	if !ok {
		return c.actionError(ev.ConnID, "validation", "errors.bad_kind", nil)
	}
	author := c.reg.NicknameFor(ev.ConnID)
	m := c.hist.Append(author, kind, ev.Body, ev.ReplyTo)
	return []Notification{toAll(NoteMessage, m)}
}

func (c *Coordinator) onDeleteMessage(ev Event) []Notification {
	nick := c.reg.NicknameFor(ev.ConnID)
	if _, err := c.hist.Delete(ev.MessageID, nick); err != nil {
		return c.errorFor(ev.ConnID, err)
	}
	return []Notification{toAll(NoteMessageDeleted, MessageDeletedPayload{MessageID: ev.MessageID})}
}

func (c *Coordinator) onEditMessage(ev Event) []Notification {
	nick := c.reg.NicknameFor(ev.ConnID)
	m, err := c.hist.Edit(ev.MessageID, nick, ev.NewText)
	if err != nil {
		return c.errorFor(ev.ConnID, err)
	}
	return []Notification{toAll(NoteMessageEdited, MessageEditedPayload{MessageID: m.ID, NewText: m.Body, User: m.Author})}
}

func (c *Coordinator) onProposeGame(ev Event) []Notification {
	if _, ok := c.reg.Resolve(ev.ConnID); !ok {
		return c.actionError(ev.ConnID, "validation", "errors.not_registered", nil)
	}
	inv, err := c.eng.Propose(ev.ConnID)
	if err != nil {
		return c.errorFor(ev.ConnID, err)
	}
	inviteeNick := c.reg.NicknameFor(inv.InviteeID)
	return []Notification{
		toConn(inv.InviteeID, NoteInvitation, InvitationPayload{
			GameID:          inv.GameID,
			InviterNickname: c.reg.NicknameFor(inv.InviterID),
		}),
		toConn(ev.ConnID, NoteStatusMessage, StatusPayload{
			Message: c.cat.MustRender("game.invite_sent", map[string]any{"Invitee": inviteeNick}),
		}),
	}
}

func (c *Coordinator) onAcceptInvite(ev Event) []Notification {
	m, err := c.eng.Accept(ev.ConnID, ev.GameID)
	if err != nil {
		return c.errorFor(ev.ConnID, err)
	}
	names := m.PlayerNicknames()
	started := GameStartedPayload{GameID: m.GameID, Players: names[:]}
	return []Notification{
		toConn(m.Players[0], NoteGameStarted, started),
		toConn(m.Players[1], NoteGameStarted, started),
	}
}

func (c *Coordinator) onDeclineInvite(ev Event) []Notification {
	inv, ok := c.eng.Decline(ev.ConnID, ev.GameID)
	if !ok {
		return nil
	}
	notes := []Notification{
		toConn(ev.ConnID, NoteStatusMessage, StatusPayload{Message: c.cat.MustRender("game.invite_declined_ack", nil)}),
	}
	if _, online := c.reg.Resolve(inv.InviterID); online {
		notes = append(notes, toConn(inv.InviterID, NoteInviteDeclined, InviteDeclinedPayload{
			DeclinerNickname: c.reg.NicknameFor(ev.ConnID),
		}))
	}
	return notes
}

func (c *Coordinator) onMakeMove(ev Event) []Notification {
	res, err := c.eng.MakeMove(ev.ConnID, ev.GameID, ev.Move)
	if err != nil {
		return c.errorFor(ev.ConnID, err)
	}

	if !res.Resolved {
		return []Notification{
			toConn(ev.ConnID, NoteWaitingForOpponent, nil),
			toConn(res.OpponentID, NoteStatusMessage, StatusPayload{
				Message: c.cat.MustRender("game.your_turn", map[string]any{"User": c.reg.NicknameFor(ev.ConnID)}),
			}),
		}
	}

	payload := RoundResultPayload{
		GameID:        res.GameID,
		Moves:         stringMoves(res.Moves),
		ResultMessage: c.roundMessage(res),
		Score:         res.Score,
	}
	if res.Winner != "" {
		c.recordWin(res.Winner)
	}
	return []Notification{
		toConn(res.PlayerIDs[0], NoteRoundResult, payload),
		toConn(res.PlayerIDs[1], NoteRoundResult, payload),
	}
}

func (c *Coordinator) onQuitGame(ev Event) []Notification {
	sum, err := c.eng.Quit(ev.ConnID, ev.GameID)
	if err != nil {
		return c.errorFor(ev.ConnID, err)
	}
	c.archiveOutcome(sum, "quit")

	notes := []Notification{
		toConn(ev.ConnID, NoteStatusMessage, StatusPayload{Message: c.cat.MustRender("game.quit_ack", nil)}),
	}
	if _, online := c.reg.Resolve(sum.OpponentID); online {
		notes = append(notes, toConn(sum.OpponentID, NoteOpponentQuit, OpponentQuitPayload{
			QuitterNickname: c.reg.NicknameFor(ev.ConnID),
		}))
	}
	return notes
}

func (c *Coordinator) onSweep() []Notification {
	if c.inviteTTL <= 0 {
		return nil
	}
	expired := c.eng.ExpireInvites(time.Now().Add(-c.inviteTTL))
	var notes []Notification
	for _, inv := range expired {
		msg := StatusPayload{Message: c.cat.MustRender("game.invite_expired", nil)}
		for _, id := range []string{inv.InviterID, inv.InviteeID} {
			if _, online := c.reg.Resolve(id); online {
				notes = append(notes, toConn(id, NoteStatusMessage, msg))
			}
		}
	}
	return notes
}

func (c *Coordinator) onDisconnect(ev Event) []Notification {
	p, registered := c.reg.Remove(ev.ConnID)
	cascade := c.eng.DropConnection(ev.ConnID)
	obslog.L().Info("session_disconnect",
		zap.String("conn", ev.ConnID),
		zap.Bool("registered", registered),
		zap.Bool("ended_match", cascade.EndedMatch != nil),
		zap.Bool("cancelled_invite", cascade.CancelledInvite != nil),
	)

	var notes []Notification
	nick := presence.UnknownNickname
	if registered {
		nick = p.Nickname
	}
	if cascade.EndedMatch != nil {
		c.archiveOutcome(*cascade.EndedMatch, "disconnect")
		if _, online := c.reg.Resolve(cascade.EndedMatch.OpponentID); online {
			notes = append(notes, toConn(cascade.EndedMatch.OpponentID, NoteOpponentQuit, OpponentQuitPayload{
				QuitterNickname: nick,
			}))
		}
	}
	if cascade.CancelledInvite != nil {
		if _, online := c.reg.Resolve(cascade.CounterpartyID); online {
			notes = append(notes, toConn(cascade.CounterpartyID, NoteStatusMessage, StatusPayload{
				Message: c.cat.MustRender("game.invite_cancelled", map[string]any{"User": nick}),
			}))
		}
	}
	if registered {
		notes = append(notes,
			toAll(NoteUsersOnline, c.reg.Nicknames()),
			toAll(NoteStatusMessage, StatusPayload{Message: c.cat.MustRender("session.left", map[string]any{"User": nick})}),
		)
	}
	return notes
}

// roundMessage renders the human-readable round outcome.
func (c *Coordinator) roundMessage(res game.MoveResult) string {
	if res.Draw {
		for _, mv := range res.Moves {
			return c.cat.MustRender("game.round_draw", map[string]any{"Move": string(mv)})
		}
	}
	var losingMove game.Move
	for nick, mv := range res.Moves {
		if nick != res.Winner {
			losingMove = mv
		}
	}
	return c.cat.MustRender("game.round_win", map[string]any{
		"Winner":      res.Winner,
		"WinningMove": string(res.Moves[res.Winner]),
		"LosingMove":  string(losingMove),
	})
}

func (c *Coordinator) recordWin(nickname string) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := c.board.RecordWin(ctx, nickname); err != nil {
		obslog.L().Warn("leaderboard_record_error", zap.String("nickname", nickname), zap.Error(err))
	}
}

func (c *Coordinator) archiveOutcome(sum game.MatchSummary, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := c.archive.SaveOutcome(ctx, gamelog.Outcome{
		GameID:    sum.GameID,
		Players:   sum.Names,
		Score:     sum.Score,
		Reason:    reason,
		StartedAt: sum.StartedAt,
		EndedAt:   sum.EndedAt,
	}); err != nil {
		obslog.L().Warn("gamelog_archive_error", zap.String("game_id", sum.GameID), zap.Error(err))
	}
}

// errorFor maps a component error onto an action-error notification for the
// originating connection only. All classes are recoverable-local.
func (c *Coordinator) errorFor(connID string, err error) []Notification {
	class, key := classify(err)
	return c.actionError(connID, class, key, err)
}

func (c *Coordinator) actionError(connID, class, key string, err error) []Notification {
	msg := c.cat.MustRender(key, nil)
	obslog.L().Info("action_error",
		zap.String("conn", connID),
		zap.String("class", class),
		zap.Error(err),
	)
	return []Notification{toConn(connID, NoteActionError, ActionErrorPayload{Message: msg})}
}

func classify(err error) (class, catalogKey string) {
	switch {
	case errors.Is(err, history.ErrNotAuthor):
		return "authorization", "errors.not_author"
	case errors.Is(err, history.ErrNotFound):
		return "not_found", "errors.message_not_found"
	case errors.Is(err, history.ErrNotEditable):
		return "validation", "errors.not_editable"
	case errors.Is(err, game.ErrInvalidMove):
		return "validation", "errors.invalid_move"
	case errors.Is(err, game.ErrInviteNotFound):
		return "not_found", "errors.invite_not_found"
	case errors.Is(err, game.ErrNoSuchMatch):
		return "not_found", "errors.no_such_match"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "precondition", "errors.not_enough_players"
	case errors.Is(err, game.ErrAlreadyEngaged):
		return "precondition", "errors.already_engaged"
	case errors.Is(err, game.ErrInviterGone):
		return "precondition", "errors.inviter_gone"
	case errors.Is(err, game.ErrMoveAlreadySubmitted):
		return "precondition", "errors.move_already_submitted"
	default:
		return "internal", "errors.unknown"
	}
}

func stringMoves(in map[string]game.Move) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = string(v)
	}
	return out
}
