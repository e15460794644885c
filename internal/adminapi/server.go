package adminapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/irolyuk/Cloud-Baby/internal/history"
	"github.com/irolyuk/Cloud-Baby/internal/leaderboard"
	"github.com/irolyuk/Cloud-Baby/internal/obslog"
	"github.com/irolyuk/Cloud-Baby/internal/presence"
)

// Stats is the live counters snapshot exposed to operators.
type Stats interface {
	ConnCount() int
}

// GameStats reports live engine counters.
type GameStats interface {
	Stats() (invites, matches int)
}

// Server is the operator-facing HTTP surface. It runs on a separate listener
// from the websocket endpoint and is never exposed to participants.
type Server struct {
	entrySecret string
	reg         *presence.Registry
	hist        *history.Store
	board       *leaderboard.Board
	conns       Stats
	games       GameStats

	srv *fasthttp.Server
}

func New(entrySecret string, reg *presence.Registry, hist *history.Store, board *leaderboard.Board, conns Stats, games GameStats) *Server {
	s := &Server{
		entrySecret: entrySecret,
		reg:         reg,
		hist:        hist,
		board:       board,
		conns:       conns,
		games:       games,
	}
	s.srv = &fasthttp.Server{
		Handler:      s.route,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Name:         "cloud-baby-admin",
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("admin_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		s.handleHealth(ctx)
	case "/config":
		s.handleConfig(ctx)
	case "/admin/presence":
		s.handlePresence(ctx)
	case "/admin/history/stats":
		s.handleHistoryStats(ctx)
	case "/admin/leaderboard":
		s.handleLeaderboard(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, map[string]string{"status": "ok"})
}

// handleConfig hands the entry secret to the frontend bootstrap.
func (s *Server) handleConfig(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, map[string]string{"entrySecret": s.entrySecret})
}

func (s *Server) handlePresence(ctx *fasthttp.RequestCtx) {
	parts := s.reg.Snapshot()
	type row struct {
		ConnID   string    `json:"connId"`
		Nickname string    `json:"nickname"`
		Remote   string    `json:"remote"`
		JoinedAt time.Time `json:"joinedAt"`
	}
	rows := make([]row, 0, len(parts))
	for _, p := range parts {
		rows = append(rows, row{ConnID: p.ConnID, Nickname: p.Nickname, Remote: p.Meta.RemoteAddr, JoinedAt: p.JoinedAt})
	}
	resp := map[string]any{
		"participants": rows,
		"registered":   len(rows),
	}
	if s.conns != nil {
		resp["connections"] = s.conns.ConnCount()
	}
	writeJSON(ctx, resp)
}

func (s *Server) handleHistoryStats(ctx *fasthttp.RequestCtx) {
	resp := map[string]any{
		"messages": s.hist.Len(),
		"capacity": s.hist.Capacity(),
	}
	if s.games != nil {
		invites, matches := s.games.Stats()
		resp["invites"] = invites
		resp["matches"] = matches
	}
	writeJSON(ctx, resp)
}

func (s *Server) handleLeaderboard(ctx *fasthttp.RequestCtx) {
	rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	top, err := s.board.Top(rctx, 10)
	if err != nil {
		obslog.L().Warn("admin_leaderboard_error", zap.Error(err))
		ctx.Error("leaderboard unavailable", fasthttp.StatusServiceUnavailable)
		return
	}
	if top == nil {
		top = []leaderboard.Entry{}
	}
	writeJSON(ctx, map[string]any{"top": top})
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}
