package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/irolyuk/Cloud-Baby/internal/obslog"
	"github.com/irolyuk/Cloud-Baby/internal/presence"
	"github.com/irolyuk/Cloud-Baby/internal/session"
)

const (
	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

// frame is the wire envelope for outbound notifications.
type frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	outbox chan frame
	cancel context.CancelFunc
}

// Hub owns every live websocket connection and the single event loop that
// drives the coordinator. Events from all connections funnel into one
// channel, so Dispatch never runs concurrently.
type Hub struct {
	coord *session.Coordinator

	entrySecret   string
	pingInterval  time.Duration
	sweepInterval time.Duration

	clientsM sync.RWMutex
	clients  map[string]*client

	events   chan session.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(coord *session.Coordinator, entrySecret string, pingInterval, sweepInterval time.Duration) *Hub {
	return &Hub{
		coord:         coord,
		entrySecret:   entrySecret,
		pingInterval:  pingInterval,
		sweepInterval: sweepInterval,
		clients:       make(map[string]*client),
		events:        make(chan session.Event, 256),
		stopCh:        make(chan struct{}),
	}
}

// Run consumes the event queue until Close. It is the only goroutine that
// calls Dispatch.
func (h *Hub) Run() {
	h.wg.Add(1)
	go h.sweepLoop()

	for {
		select {
		case <-h.stopCh:
			return
		case ev := <-h.events:
			h.deliver(h.coord.Dispatch(ev))
		}
	}
}

func (h *Hub) sweepLoop() {
	defer h.wg.Done()
	if h.sweepInterval <= 0 {
		return
	}
	t := time.NewTicker(h.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-t.C:
			h.inject(session.Event{Type: session.EvSweep})
		}
	}
}

// inject queues an event without blocking the caller forever on shutdown.
func (h *Hub) inject(ev session.Event) {
	select {
	case h.events <- ev:
	case <-h.stopCh:
	}
}

// Handler upgrades HTTP requests to websocket sessions.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.entrySecret != "" && r.URL.Query().Get("secret") != h.entrySecret {
			obslog.L().Warn("ws_secret_rejected", zap.String("remote", r.RemoteAddr))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode:    websocket.CompressionNoContextTakeover,
			InsecureSkipVerify: true,
		})
		if err != nil {
			obslog.L().Warn("ws_accept_error", zap.Error(err))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		c := &client{
			id:     uuid.NewString(),
			conn:   conn,
			outbox: make(chan frame, outboxSize),
			cancel: cancel,
		}
		meta := presence.Metadata{
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			Locale:     r.Header.Get("Accept-Language"),
		}

		h.clientsM.Lock()
		h.clients[c.id] = c
		h.clientsM.Unlock()
		obslog.L().Info("ws_open", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

		h.wg.Add(2)
		go h.egressLoop(ctx, c)
		go h.pingLoop(ctx, c)

		h.inject(session.Event{Type: session.EvConnect, ConnID: c.id, Meta: meta})
		h.readLoop(ctx, c, meta)
	})
}

// readLoop blocks on the connection until it drops, then tears the client
// down. Runs on the HTTP handler goroutine.
func (h *Hub) readLoop(ctx context.Context, c *client, meta presence.Metadata) {
	for {
		var ev session.Event
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			break
		}
		ev.ConnID = c.id
		ev.Meta = meta
		if ev.Type == session.EvConnect || ev.Type == session.EvDisconnect || ev.Type == session.EvSweep {
			// lifecycle events never come from the wire
			continue
		}
		h.inject(ev)
	}
	h.dropClient(c, websocket.StatusNormalClosure, "bye")
}

// dropClient removes the client from the roster before the disconnect event
// is queued, so broadcasts from the cascade never target a dead connection.
func (h *Hub) dropClient(c *client, code websocket.StatusCode, reason string) {
	h.clientsM.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	h.clientsM.Unlock()
	if !present {
		return
	}

	c.cancel()
	_ = c.conn.Close(code, reason)
	obslog.L().Info("ws_close", zap.String("conn", c.id))
	h.inject(session.Event{Type: session.EvDisconnect, ConnID: c.id})
}

// egressLoop is the sole writer for one connection, preserving per-connection
// delivery order.
func (h *Hub) egressLoop(ctx context.Context, c *client) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.outbox:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, f)
			cancel()
			if err != nil {
				obslog.L().Warn("ws_write_error", zap.String("conn", c.id), zap.Error(err))
				h.dropClient(c, websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, c *client) {
	defer h.wg.Done()
	if h.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					h.dropClient(c, websocket.StatusGoingAway, "ping failure")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// deliver fans notifications out to client outboxes. A full outbox drops the
// client rather than stalling the event loop.
func (h *Hub) deliver(notes []session.Notification) {
	for _, n := range notes {
		f := frame{Event: n.Name, Payload: n.Payload}
		switch n.Scope {
		case session.ScopeConn:
			if c := h.lookup(n.Target); c != nil {
				h.enqueue(c, f)
			}
		case session.ScopeBroadcast:
			for _, c := range h.snapshot() {
				h.enqueue(c, f)
			}
		case session.ScopeBroadcastExcept:
			for _, c := range h.snapshot() {
				if c.id != n.Target {
					h.enqueue(c, f)
				}
			}
		}
	}
}

func (h *Hub) enqueue(c *client, f frame) {
	select {
	case c.outbox <- f:
	default:
		obslog.L().Warn("ws_outbox_full", zap.String("conn", c.id), zap.String("event", f.Event))
		go h.dropClient(c, websocket.StatusGoingAway, "slow consumer")
	}
}

func (h *Hub) lookup(id string) *client {
	h.clientsM.RLock()
	defer h.clientsM.RUnlock()
	return h.clients[id]
}

func (h *Hub) snapshot() []*client {
	h.clientsM.RLock()
	defer h.clientsM.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// ConnCount reports live websocket connections, registered or not.
func (h *Hub) ConnCount() int {
	h.clientsM.RLock()
	defer h.clientsM.RUnlock()
	return len(h.clients)
}

// Close stops the loops and closes every connection.
func (h *Hub) Close(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })

	for _, c := range h.snapshot() {
		c.cancel()
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
