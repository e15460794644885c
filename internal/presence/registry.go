package presence

import (
	"sync"
	"time"
)

// UnknownNickname is the sentinel author for connections that have not
// completed registration.
const UnknownNickname = "Unknown"

// Metadata carries informational connection attributes. Nothing here has a
// behavioral invariant.
type Metadata struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// Participant is one registered connection.
type Participant struct {
	ConnID   string    `json:"connId"`
	Nickname string    `json:"nickname"`
	Meta     Metadata  `json:"meta"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Registry owns all Participant records, keyed by connection id. It is the
// single source of truth for who is online.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Participant
	order  []string // conn ids in first-registration order
}

func NewRegistry() *Registry {
	return &Registry{byConn: make(map[string]*Participant)}
}

// Register creates or overwrites the entry for connID. Re-registration is
// idempotent and keeps the original roster position. Nicknames are not
// checked for uniqueness.
func (r *Registry) Register(connID, nickname string, meta Metadata) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byConn[connID]; ok {
		prev.Nickname = nickname
		prev.Meta = meta
		return *prev
	}
	p := &Participant{ConnID: connID, Nickname: nickname, Meta: meta, JoinedAt: time.Now()}
	r.byConn[connID] = p
	r.order = append(r.order, connID)
	return *p
}

// Resolve looks up the participant for connID.
func (r *Registry) Resolve(connID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[connID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// NicknameFor returns the display name for connID, or the Unknown sentinel
// when the connection never registered.
func (r *Registry) NicknameFor(connID string) string {
	if p, ok := r.Resolve(connID); ok {
		return p.Nickname
	}
	return UnknownNickname
}

// Remove deletes the entry for connID and reports what was removed. The
// caller is responsible for cascading cleanup into the game engine.
func (r *Registry) Remove(connID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byConn[connID]
	if !ok {
		return Participant{}, false
	}
	delete(r.byConn, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// Nicknames returns display names in registration order. The order is an
// implementation detail, not a contract.
func (r *Registry) Nicknames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.byConn[id]; ok {
			out = append(out, p.Nickname)
		}
	}
	return out
}

// Snapshot returns participant copies in registration order.
func (r *Registry) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.byConn[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Count reports how many participants are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
