package models

import "github.com/google/uuid"

// RoomEventRecord is one lifecycle entry pushed onto the Redis room event queue and
// persisted by the historian.
type RoomEventRecord struct {
	ID           uuid.UUID              `json:"id"`
	RoomID       string                 `json:"room_id"`
	Seq          int                    `json:"seq"`
	EventType    string                 `json:"event_type"`
	ConnectionID string                 `json:"connection_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    int64                  `json:"timestamp"`
}
