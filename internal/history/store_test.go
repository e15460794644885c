package history

import (
	"errors"
	"fmt"
	"testing"
)

func TestFIFOEviction(t *testing.T) {
	s := NewStore(50)
	for i := 0; i < 120; i++ {
		s.Append("Alice", KindText, fmt.Sprintf("msg-%d", i), "")
	}
	snap := s.Snapshot()
	if len(snap) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(snap))
	}
	// the most recent 50 appends, in insertion order
	for i, m := range snap {
		want := fmt.Sprintf("msg-%d", 70+i)
		if m.Body != want {
			t.Fatalf("snapshot[%d]: got %q want %q", i, m.Body, want)
		}
	}
}

func TestEvictionIgnoresDeletes(t *testing.T) {
	s := NewStore(5)
	first := s.Append("Alice", KindText, "a", "")
	if _, err := s.Delete(first.ID, "Alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for i := 0; i < 6; i++ {
		s.Append("Alice", KindText, fmt.Sprintf("b-%d", i), "")
	}
	if s.Len() != 5 {
		t.Fatalf("expected len 5 post-append, got %d", s.Len())
	}
}

func TestEditAuthorization(t *testing.T) {
	s := NewStore(0)
	m := s.Append("Bob", KindText, "hello", "")

	if _, err := s.Edit(m.ID, "Alice", "hacked"); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	snap := s.Snapshot()
	if snap[0].Body != "hello" {
		t.Fatalf("store changed on failed edit: %q", snap[0].Body)
	}

	got, err := s.Edit(m.ID, "Bob", "hi there")
	if err != nil {
		t.Fatalf("Edit by author: %v", err)
	}
	if got.Body != "hi there" || s.Snapshot()[0].Body != "hi there" {
		t.Fatalf("edit not applied in place")
	}
}

func TestEditRejectsImages(t *testing.T) {
	s := NewStore(0)
	m := s.Append("Bob", KindImage, "base64-payload", "")
	if _, err := s.Edit(m.ID, "Bob", "x"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestEditMissing(t *testing.T) {
	s := NewStore(0)
	if _, err := s.Edit("nope", "Bob", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAnyPosition(t *testing.T) {
	s := NewStore(0)
	s.Append("Alice", KindText, "one", "")
	mid := s.Append("Alice", KindImage, "two", "")
	s.Append("Alice", KindText, "three", "")

	if _, err := s.Delete(mid.ID, "Bob"); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if _, err := s.Delete(mid.ID, "Alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Body != "one" || snap[1].Body != "three" {
		t.Fatalf("unexpected order after middle delete: %+v", snap)
	}
	if _, err := s.Delete(mid.ID, "Alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"text", KindText, true},
		{"", KindText, true},
		{"image", KindImage, true},
		{"video", "", false},
	}
	for _, c := range cases {
		got, ok := ParseKind(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseKind(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
