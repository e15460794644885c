package gamelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Outcome is the final state of a finished match.
type Outcome struct {
	GameID    string
	Players   [2]string // nicknames, inviter first
	Score     map[string]int
	Reason    string // "quit" or "disconnect"
	StartedAt time.Time
	EndedAt   time.Time
}

// Repository archives match outcomes in Postgres. Methods are nil-safe so
// the archive can stay unwired when DATABASE_URL is not configured.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveOutcome upserts one finished match.
func (r *Repository) SaveOutcome(ctx context.Context, o Outcome) error {
	if r == nil || r.db == nil {
		return nil
	}

	scoreRaw, _ := json.Marshal(o.Score)
	duration := o.EndedAt.Sub(o.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO rps_matches (
	    game_id, player_a, player_b, score, end_reason,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    player_a=EXCLUDED.player_a,
	    player_b=EXCLUDED.player_b,
	    score=EXCLUDED.score,
	    end_reason=EXCLUDED.end_reason,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		o.GameID,
		o.Players[0], o.Players[1],
		string(scoreRaw), strings.TrimSpace(o.Reason),
		o.StartedAt, o.EndedAt, duration,
	)
	return err
}
