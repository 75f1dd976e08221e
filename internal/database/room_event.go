// internal/database/room_event.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/blindtest/internal/models"
)

// RoomEventStore appends room lifecycle records for the historian.
type RoomEventStore struct {
	pool *pgxpool.Pool
}

func NewRoomEventStore(pool *pgxpool.Pool) *RoomEventStore {
	return &RoomEventStore{pool: pool}
}

// InsertBatch writes recs in one transaction. Records already stored (same id) are skipped.
func (s *RoomEventStore) InsertBatch(ctx context.Context, recs []models.RoomEventRecord) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertRoomEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert room event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func insertRoomEventTx(ctx context.Context, tx pgx.Tx, rec models.RoomEventRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO room_events (id, room_id, seq, event_type, connection_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, q, rec.ID, rec.RoomID, rec.Seq, rec.EventType, rec.ConnectionID,
		payload, time.UnixMilli(rec.Timestamp))
	return err
}

// CountForRoom is the number of stored events for roomID.
func (s *RoomEventStore) CountForRoom(ctx context.Context, roomID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_events WHERE room_id = $1`, roomID).Scan(&n)
	return n, err
}
