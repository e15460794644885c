package leaderboard

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const tallyKey = "rps:leaderboard"

// Entry is one leaderboard row.
type Entry struct {
	Nickname string `json:"nickname"`
	Wins     int64  `json:"wins"`
}

// Board keeps a career win tally per nickname in a Redis sorted set. All
// methods are nil-safe so callers can wire the board unconditionally and
// leave it unset when REDIS_URL is not configured.
type Board struct {
	rdb *redis.Client
}

func New(redisURL string) (*Board, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for leaderboard")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Board{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(rdb *redis.Client) *Board { return &Board{rdb: rdb} }

func (b *Board) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// RecordWin increments the nickname's career tally by one.
func (b *Board) RecordWin(ctx context.Context, nickname string) error {
	if b == nil || b.rdb == nil {
		return nil
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil
	}
	return b.rdb.ZIncrBy(ctx, tallyKey, 1, nickname).Err()
}

// Top returns the n best-scoring nicknames, highest first.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if b == nil || b.rdb == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 10
	}
	zs, err := b.rdb.ZRevRangeWithScores(ctx, tallyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		out = append(out, Entry{Nickname: name, Wins: int64(z.Score)})
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
