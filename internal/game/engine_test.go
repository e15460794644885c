package game

import (
	"errors"
	"testing"
	"time"

	"github.com/irolyuk/Cloud-Baby/internal/presence"
)

func newTestEngine(t *testing.T, nicks ...string) (*Engine, *presence.Registry, []string) {
	t.Helper()
	reg := presence.NewRegistry()
	conns := make([]string, len(nicks))
	for i, n := range nicks {
		conns[i] = "conn-" + n
		reg.Register(conns[i], n, presence.Metadata{})
	}
	return NewEngine(reg), reg, conns
}

func startMatch(t *testing.T, e *Engine) (inviter, invitee, gameID string) {
	t.Helper()
	inv, err := e.Propose("conn-Alice")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := e.Accept(inv.InviteeID, inv.GameID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return inv.InviterID, inv.InviteeID, inv.GameID
}

func TestDominanceRelation(t *testing.T) {
	moves := []Move{MoveRock, MovePaper, MoveScissors}
	wins := 0
	for _, a := range moves {
		for _, b := range moves {
			ab, ba := Beats(a, b), Beats(b, a)
			if a == b {
				if ab || ba {
					t.Fatalf("reflexive win for %s", a)
				}
				continue
			}
			if ab == ba {
				t.Fatalf("relation not total for (%s,%s): %v/%v", a, b, ab, ba)
			}
			if ab {
				wins++
			}
		}
	}
	if wins != 3 {
		t.Fatalf("expected exactly 3 winning ordered pairs, got %d", wins)
	}
	for _, c := range []struct{ w, l Move }{
		{MoveRock, MoveScissors},
		{MoveScissors, MovePaper},
		{MovePaper, MoveRock},
	} {
		if !Beats(c.w, c.l) {
			t.Fatalf("%s should beat %s", c.w, c.l)
		}
	}
}

func TestProposeRequiresTwoPlayers(t *testing.T) {
	e, _, conns := newTestEngine(t, "Alice")
	if _, err := e.Propose(conns[0]); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
	if n, _ := e.Stats(); n != 0 {
		t.Fatalf("no invitation should exist, got %d", n)
	}
}

func TestSingleInvitationInvariant(t *testing.T) {
	e, _, conns := newTestEngine(t, "Alice", "Bob", "Carol")
	if _, err := e.Propose(conns[0]); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	// proposer engaged
	if _, err := e.Propose(conns[0]); !errors.Is(err, ErrAlreadyEngaged) {
		t.Fatalf("expected ErrAlreadyEngaged for second propose, got %v", err)
	}
	// invitee engaged: Bob is Alice's candidate, and Bob's own candidate is Alice
	if _, err := e.Propose(conns[1]); !errors.Is(err, ErrAlreadyEngaged) {
		t.Fatalf("expected ErrAlreadyEngaged for engaged candidate, got %v", err)
	}
	// Carol's candidate is Alice, who is engaged as inviter
	if _, err := e.Propose(conns[2]); !errors.Is(err, ErrAlreadyEngaged) {
		t.Fatalf("expected ErrAlreadyEngaged via inviter role, got %v", err)
	}
	if invites, _ := e.Stats(); invites != 1 {
		t.Fatalf("expected exactly one outstanding invitation, got %d", invites)
	}
}

func TestAcceptPromotesToMatch(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	inv, err := e.Propose("conn-Alice")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	m, err := e.Accept(inv.InviteeID, inv.GameID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if m.Score["Alice"] != 0 || m.Score["Bob"] != 0 {
		t.Fatalf("score not zeroed: %v", m.Score)
	}
	if len(m.Pending) != 0 {
		t.Fatalf("pending moves should start absent: %v", m.Pending)
	}
	// invitation consumed
	if _, err := e.Accept(inv.InviteeID, inv.GameID); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound on re-accept, got %v", err)
	}
}

func TestAcceptStaleOrWrongID(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	inv, _ := e.Propose("conn-Alice")
	if _, err := e.Accept(inv.InviteeID, "bogus"); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound for wrong id, got %v", err)
	}
	// only the invitee may accept
	if _, err := e.Accept(inv.InviterID, inv.GameID); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound for wrong role, got %v", err)
	}
}

func TestAcceptInviterGone(t *testing.T) {
	e, reg, _ := newTestEngine(t, "Alice", "Bob")
	inv, _ := e.Propose("conn-Alice")
	reg.Remove("conn-Alice")
	if _, err := e.Accept(inv.InviteeID, inv.GameID); !errors.Is(err, ErrInviterGone) {
		t.Fatalf("expected ErrInviterGone, got %v", err)
	}
	if invites, _ := e.Stats(); invites != 0 {
		t.Fatalf("stale invitation should be consumed, got %d", invites)
	}
}

func TestDeclineConsumesInvite(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	inv, _ := e.Propose("conn-Alice")
	got, ok := e.Decline(inv.InviteeID, inv.GameID)
	if !ok || got.InviterID != "conn-Alice" {
		t.Fatalf("Decline: ok=%v inv=%+v", ok, got)
	}
	if _, ok := e.Decline(inv.InviteeID, inv.GameID); ok {
		t.Fatalf("second decline should be a no-op")
	}
	// both parties free again
	if _, err := e.Propose("conn-Bob"); err != nil {
		t.Fatalf("Propose after decline: %v", err)
	}
}

func TestRoundResolution(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	alice, bob, gid := startMatch(t, e)

	res, err := e.MakeMove(alice, gid, "rock")
	if err != nil {
		t.Fatalf("MakeMove alice: %v", err)
	}
	if res.Resolved {
		t.Fatalf("round should wait for opponent")
	}
	if res.OpponentID != bob {
		t.Fatalf("opponent: got %s want %s", res.OpponentID, bob)
	}

	res, err = e.MakeMove(bob, gid, "scissors")
	if err != nil {
		t.Fatalf("MakeMove bob: %v", err)
	}
	if !res.Resolved || res.Draw || res.Winner != "Alice" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if res.Score["Alice"] != 1 || res.Score["Bob"] != 0 {
		t.Fatalf("unexpected score: %v", res.Score)
	}
	if res.Moves["Alice"] != MoveRock || res.Moves["Bob"] != MoveScissors {
		t.Fatalf("unexpected moves: %v", res.Moves)
	}

	// pending slots reset: same player may move again
	if _, err := e.MakeMove(alice, gid, "paper"); err != nil {
		t.Fatalf("move after reset: %v", err)
	}
}

func TestRoundDraw(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	alice, bob, gid := startMatch(t, e)
	e.MakeMove(alice, gid, "paper")
	res, err := e.MakeMove(bob, gid, "paper")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !res.Draw || res.Winner != "" {
		t.Fatalf("expected draw: %+v", res)
	}
	if res.Score["Alice"] != 0 || res.Score["Bob"] != 0 {
		t.Fatalf("draw must not change score: %v", res.Score)
	}
}

func TestMoveErrors(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	alice, _, gid := startMatch(t, e)

	if _, err := e.MakeMove(alice, gid, "lizard"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	if _, err := e.MakeMove("conn-Nobody", gid, "rock"); !errors.Is(err, ErrNoSuchMatch) {
		t.Fatalf("expected ErrNoSuchMatch for outsider, got %v", err)
	}
	if _, err := e.MakeMove(alice, "bogus", "rock"); !errors.Is(err, ErrNoSuchMatch) {
		t.Fatalf("expected ErrNoSuchMatch for bad id, got %v", err)
	}
	if _, err := e.MakeMove(alice, gid, "rock"); err != nil {
		t.Fatalf("first move: %v", err)
	}
	if _, err := e.MakeMove(alice, gid, "paper"); !errors.Is(err, ErrMoveAlreadySubmitted) {
		t.Fatalf("expected ErrMoveAlreadySubmitted, got %v", err)
	}
}

func TestQuitRemovesMatch(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	alice, bob, gid := startMatch(t, e)
	sum, err := e.Quit(alice, gid)
	if err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if sum.OpponentID != bob {
		t.Fatalf("opponent: got %s want %s", sum.OpponentID, bob)
	}
	if _, err := e.Quit(bob, gid); !errors.Is(err, ErrNoSuchMatch) {
		t.Fatalf("match should be gone, got %v", err)
	}
	// both free to play again
	if _, err := e.Propose(alice); err != nil {
		t.Fatalf("Propose after quit: %v", err)
	}
}

func TestDisconnectCascadeMatch(t *testing.T) {
	e, reg, _ := newTestEngine(t, "Alice", "Bob")
	alice, bob, gid := startMatch(t, e)

	reg.Remove(alice)
	res := e.DropConnection(alice)
	if res.EndedMatch == nil || res.EndedMatch.GameID != gid {
		t.Fatalf("expected ended match %s, got %+v", gid, res.EndedMatch)
	}
	if res.EndedMatch.OpponentID != bob {
		t.Fatalf("survivor: got %s want %s", res.EndedMatch.OpponentID, bob)
	}
	if _, matches := e.Stats(); matches != 0 {
		t.Fatalf("no match may reference a dropped connection")
	}
	// survivor free again
	reg.Register("conn-Carol", "Carol", presence.Metadata{})
	if _, err := e.Propose(bob); err != nil {
		t.Fatalf("Propose after cascade: %v", err)
	}
}

func TestDisconnectCascadeInvite(t *testing.T) {
	e, reg, _ := newTestEngine(t, "Alice", "Bob")
	inv, _ := e.Propose("conn-Alice")

	reg.Remove("conn-Alice")
	res := e.DropConnection("conn-Alice")
	if res.CancelledInvite == nil || res.CancelledInvite.GameID != inv.GameID {
		t.Fatalf("expected cancelled invite, got %+v", res.CancelledInvite)
	}
	if res.CounterpartyID != inv.InviteeID {
		t.Fatalf("counterparty: got %s want %s", res.CounterpartyID, inv.InviteeID)
	}
	if invites, _ := e.Stats(); invites != 0 {
		t.Fatalf("invitation should be discarded")
	}
}

func TestDropConnectionIdleIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	res := e.DropConnection("conn-Alice")
	if res.EndedMatch != nil || res.CancelledInvite != nil {
		t.Fatalf("expected empty cascade, got %+v", res)
	}
}

func TestExpireInvites(t *testing.T) {
	e, _, _ := newTestEngine(t, "Alice", "Bob")
	inv, _ := e.Propose("conn-Alice")

	if got := e.ExpireInvites(time.Now().Add(-time.Minute)); len(got) != 0 {
		t.Fatalf("fresh invite must survive, expired %d", len(got))
	}
	got := e.ExpireInvites(time.Now().Add(time.Minute))
	if len(got) != 1 || got[0].GameID != inv.GameID {
		t.Fatalf("expected the invite to expire, got %+v", got)
	}
	if _, err := e.Propose("conn-Bob"); err != nil {
		t.Fatalf("Propose after expiry: %v", err)
	}
}
