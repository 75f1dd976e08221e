// internal/database/game_result.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/blindtest/internal/models"
)

// GameResultStore persists final standings of finished games.
type GameResultStore struct {
	pool *pgxpool.Pool
}

func NewGameResultStore(pool *pgxpool.Pool) *GameResultStore {
	return &GameResultStore{pool: pool}
}

// RecordGame writes the game row and one row per player in a single transaction.
func (s *GameResultStore) RecordGame(ctx context.Context, result models.GameResult) error {
	id := uuid.New()
	var winner *string
	if w := result.Winner(); w != "" {
		winner = &w
	}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_results (id, room_id, category, difficulty, total_rounds, winner_id, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, q, id, result.RoomID, result.Category, result.Difficulty,
			result.TotalRounds, winner, result.StartedAt, result.FinishedAt); err != nil {
			return err
		}

		for seat, p := range result.Players {
			pq := `
				INSERT INTO game_result_players (result_id, player_id, seat, username, score, did_win)
				VALUES ($1, $2, $3, $4, $5, $6)
			`
			didWin := winner != nil && *winner == p.ID
			if _, err := tx.Exec(ctx, pq, id, p.ID, seat, p.Username, p.Score, didWin); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game result for room %s: %w", result.RoomID, err)
	}
	return nil
}

// ResultSummary is one stored game as read back for inspection.
type ResultSummary struct {
	ID          uuid.UUID
	RoomID      string
	TotalRounds int
	WinnerID    *string
	Players     []models.Player
}

// ResultsForRoom returns the stored results for a room code, newest first.
func (s *GameResultStore) ResultsForRoom(ctx context.Context, roomID string) ([]ResultSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, total_rounds, winner_id
		FROM game_results
		WHERE room_id = $1
		ORDER BY finished_at DESC
	`, roomID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ResultSummary, error) {
		var r ResultSummary
		err := row.Scan(&r.ID, &r.RoomID, &r.TotalRounds, &r.WinnerID)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	for i := range out {
		prows, err := s.pool.Query(ctx, `
			SELECT player_id, username, score
			FROM game_result_players
			WHERE result_id = $1
			ORDER BY seat
		`, out[i].ID)
		if err != nil {
			return nil, err
		}
		players, err := pgx.CollectRows(prows, func(row pgx.CollectableRow) (models.Player, error) {
			var p models.Player
			err := row.Scan(&p.ID, &p.Username, &p.Score)
			return p, err
		})
		if err != nil {
			return nil, err
		}
		out[i].Players = players
	}
	return out, nil
}
