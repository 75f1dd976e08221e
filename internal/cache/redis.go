// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room lifecycle events.
const DefaultQueueName = "blindtest_room_events"

// ErrBadRecord marks a queue entry that is not a valid RoomEventRecord.
var ErrBadRecord = errors.New("invalid room event record")

// Connect opens a Redis client for addr/db and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventLog pushes room event records onto a Redis list drained by the historian.
type EventLog struct {
	rdb   redis.Cmdable
	queue string
}

// NewEventLog returns an EventLog for queue (DefaultQueueName when empty).
func NewEventLog(rdb redis.Cmdable, queue string) *EventLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &EventLog{rdb: rdb, queue: queue}
}

// Queue is the list name records are pushed to.
func (l *EventLog) Queue() string { return l.queue }

// PublishRoomEvent serializes rec to JSON and pushes it to the queue.
func (l *EventLog) PublishRoomEvent(ctx context.Context, rec models.RoomEventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEventRecord: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// PopRoomEvent blocks up to timeout for the next record. An empty queue yields
// (zero, false, nil).
func (l *EventLog) PopRoomEvent(ctx context.Context, timeout time.Duration) (models.RoomEventRecord, bool, error) {
	var rec models.RoomEventRecord
	res, err := l.rdb.BLPop(ctx, timeout, l.queue).Result()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return rec, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return rec, false, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return rec, true, nil
}

// TrackCache keeps catalog tracklists as JSON strings with a TTL.
type TrackCache struct {
	rdb redis.Cmdable
}

func NewTrackCache(rdb redis.Cmdable) *TrackCache {
	return &TrackCache{rdb: rdb}
}

// GetTracks returns the cached tracklist for key. A miss is (nil, false, nil).
func (c *TrackCache) GetTracks(ctx context.Context, key string) ([]models.Song, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var songs []models.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, false, fmt.Errorf("corrupt cached tracklist %s: %w", key, err)
	}
	return songs, true, nil
}

func (c *TrackCache) SetTracks(ctx context.Context, key string, songs []models.Song, ttl time.Duration) error {
	data, err := json.Marshal(songs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}
