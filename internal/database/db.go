// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect parses url, opens a pool and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	id           UUID PRIMARY KEY,
	room_id      TEXT NOT NULL,
	category     TEXT NOT NULL,
	difficulty   TEXT NOT NULL,
	total_rounds INT NOT NULL,
	winner_id    TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS game_result_players (
	result_id UUID NOT NULL REFERENCES game_results (id) ON DELETE CASCADE,
	player_id TEXT NOT NULL,
	seat      INT NOT NULL,
	username  TEXT NOT NULL DEFAULT '',
	score     INT NOT NULL,
	did_win   BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (result_id, player_id)
);

CREATE TABLE IF NOT EXISTS room_events (
	id            UUID PRIMARY KEY,
	room_id       TEXT NOT NULL,
	seq           INT NOT NULL,
	event_type    TEXT NOT NULL,
	connection_id TEXT NOT NULL DEFAULT '',
	payload       JSONB,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS room_events_room_seq ON room_events (room_id, seq);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
