package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/irolyuk/Cloud-Baby/internal/adminapi"
	appcfg "github.com/irolyuk/Cloud-Baby/internal/config"
	"github.com/irolyuk/Cloud-Baby/internal/game"
	"github.com/irolyuk/Cloud-Baby/internal/gamelog"
	"github.com/irolyuk/Cloud-Baby/internal/history"
	"github.com/irolyuk/Cloud-Baby/internal/hub"
	"github.com/irolyuk/Cloud-Baby/internal/leaderboard"
	"github.com/irolyuk/Cloud-Baby/internal/msgcat"
	"github.com/irolyuk/Cloud-Baby/internal/obslog"
	"github.com/irolyuk/Cloud-Baby/internal/presence"
	"github.com/irolyuk/Cloud-Baby/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cat, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	reg := presence.NewRegistry()
	hist := history.NewStore(cfg.HistoryLimit)
	eng := game.NewEngine(reg)

	coord := session.New(reg, hist, eng, cat, time.Duration(cfg.InviteTTLSec)*time.Second)

	// optional sinks, wired only when configured
	var board *leaderboard.Board
	if cfg.RedisURL != "" {
		board, err = leaderboard.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("leaderboard init error: %v", err)
		}
		coord.AttachLeaderboard(board)
	}
	var archive *gamelog.Repository
	if cfg.DatabaseURL != "" {
		archive, err = gamelog.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("game archive init error: %v", err)
		}
		coord.AttachArchive(archive)
	}

	h := hub.New(coord, cfg.EntrySecret,
		time.Duration(cfg.PingIntervalSec)*time.Second,
		time.Duration(cfg.SweepIntervalSec)*time.Second,
	)
	go h.Run()

	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	wsSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("ws_listen", zap.String("addr", cfg.ListenAddr))
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ws server error: %v", err)
		}
	}()

	admin := adminapi.New(cfg.EntrySecret, reg, hist, board, h, eng)
	go func() {
		if err := admin.ListenAndServe(cfg.AdminAddr); err != nil {
			log.Fatalf("admin server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown_begin")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = wsSrv.Shutdown(ctx)
	_ = admin.Shutdown(ctx)
	_ = h.Close(ctx)
	_ = board.Close()
	_ = archive.Close()
	obslog.L().Info("shutdown_done")
}
