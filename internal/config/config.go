package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string
	AdminAddr  string

	EntrySecret string

	HistoryLimit     int
	InviteTTLSec     int
	SweepIntervalSec int
	PingIntervalSec  int

	RedisURL    string
	DatabaseURL string

	MsgTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":10000",
		AdminAddr:        ":10001",
		HistoryLimit:     50,
		InviteTTLSec:     120,
		SweepIntervalSec: 30,
		PingIntervalSec:  30,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_ADDR")); v != "" {
		cfg.AdminAddr = v
	}

	cfg.EntrySecret = strings.TrimSpace(os.Getenv("ENTRY_SECRET"))

	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("INVITE_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InviteTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepIntervalSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PING_INTERVAL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PingIntervalSec = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if cfg.EntrySecret == "" {
		return nil, errors.New("ENTRY_SECRET is required")
	}

	return cfg, nil
}
