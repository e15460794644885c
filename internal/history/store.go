package history

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("message not found")
	ErrNotAuthor   = errors.New("requester is not the message author")
	ErrNotEditable = errors.New("only text messages can be edited")
)

// Kind discriminates the message payload.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ParseKind validates a wire kind string. An empty kind defaults to text.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindText, "":
		return KindText, true
	case KindImage:
		return KindImage, true
	default:
		return "", false
	}
}

// Message is one history entry. Author is the nickname captured at creation
// time; it is the message's only durable link to its author.
type Message struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Kind    Kind      `json:"kind"`
	Body    string    `json:"body"`
	ReplyTo string    `json:"replyTo,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// DefaultCapacity bounds the history log.
const DefaultCapacity = 50

// Store is a bounded, ordered message log with FIFO eviction. Eviction only
// reacts to appends; edits and deletes never change the capacity accounting.
type Store struct {
	mu   sync.RWMutex
	cap  int
	msgs []Message
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{cap: capacity}
}

// Append creates a message with a fresh id and evicts the oldest entry when
// the log would exceed capacity.
func (s *Store) Append(author string, kind Kind, body, replyTo string) Message {
	m := Message{
		ID:      uuid.NewString(),
		Author:  author,
		Kind:    kind,
		Body:    body,
		ReplyTo: replyTo,
		SentAt:  time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	if len(s.msgs) > s.cap {
		s.msgs = s.msgs[len(s.msgs)-s.cap:]
	}
	return m
}

// Edit replaces the body of a text message owned by requester. The store is
// left untouched on any error.
func (s *Store) Edit(id, requester, newBody string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Message{}, ErrNotFound
	}
	if s.msgs[i].Author != requester {
		return Message{}, ErrNotAuthor
	}
	if s.msgs[i].Kind != KindText {
		return Message{}, ErrNotEditable
	}
	s.msgs[i].Body = newBody
	return s.msgs[i], nil
}

// Delete removes the message with id from any position, subject to the same
// ownership rule as Edit but with no kind restriction.
func (s *Store) Delete(id, requester string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Message{}, ErrNotFound
	}
	if s.msgs[i].Author != requester {
		return Message{}, ErrNotAuthor
	}
	m := s.msgs[i]
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	return m, nil
}

// Snapshot returns the full history, oldest first.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len reports the current history size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Capacity reports the configured bound.
func (s *Store) Capacity() int { return s.cap }

func (s *Store) indexOf(id string) int {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}
