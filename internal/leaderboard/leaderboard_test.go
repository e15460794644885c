package leaderboard

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestBoard(t *testing.T) (*Board, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	b, err := New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, func() { _ = b.Close(); mr.Close() }
}

func TestRecordAndTop(t *testing.T) {
	b, cleanup := newTestBoard(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.RecordWin(ctx, "Alice"); err != nil {
			t.Fatalf("RecordWin: %v", err)
		}
	}
	if err := b.RecordWin(ctx, "Bob"); err != nil {
		t.Fatalf("RecordWin: %v", err)
	}

	top, err := b.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Nickname != "Alice" || top[0].Wins != 3 {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	if top[1].Nickname != "Bob" || top[1].Wins != 1 {
		t.Fatalf("unexpected runner-up: %+v", top[1])
	}
}

func TestNilBoardIsSafe(t *testing.T) {
	var b *Board
	if err := b.RecordWin(context.Background(), "Alice"); err != nil {
		t.Fatalf("nil RecordWin: %v", err)
	}
	if top, err := b.Top(context.Background(), 5); err != nil || top != nil {
		t.Fatalf("nil Top: %v %v", top, err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
