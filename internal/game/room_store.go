// internal/game/room_store.go
package game

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/jason-s-yu/blindtest/internal/models"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	codeAttempts = 32
)

// RoomStore is the in-memory registry of live rooms. It also indexes which room
// each connection belongs to; a connection is in at most one room.
// The store never takes a room lock, so callers may hold Room.Mu while calling it.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]string // connection id -> room code

	// NewCode generates candidate room codes. Replaced in tests.
	NewCode func() (string, error)
}

// NewRoomStore returns an empty registry using random 6-character codes.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:   make(map[string]*Room),
		conns:   make(map[string]string),
		NewCode: RandomCode,
	}
}

// RandomCode returns a short human-typable code from crypto/rand.
func RandomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Create registers a new room whose first player (the host) is hostID.
func (s *RoomStore) Create(hostID, username string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.conns[hostID]; busy {
		return nil, ErrAlreadyInRoom
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == codeAttempts {
			return nil, ErrCodeExhausted
		}
		c, err := s.NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := s.rooms[c]; !taken {
			code = c
			break
		}
	}

	room := newRoom(code)
	room.Players = append(room.Players, &models.Player{ID: hostID, Username: username})
	s.rooms[code] = room
	s.conns[hostID] = code
	return room, nil
}

// Get returns the live room for code.
func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	return r, ok
}

// Remove deletes the room and releases its connections. Removing an unknown code is a no-op.
func (s *RoomStore) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return
	}
	delete(s.rooms, code)
	for conn, c := range s.conns {
		if c == code {
			delete(s.conns, conn)
		}
	}
}

// RoomOf returns the code of the room connID is in.
func (s *RoomStore) RoomOf(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connID]
	return c, ok
}

// Count is the number of live rooms.
func (s *RoomStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// bind records that connID joined code.
func (s *RoomStore) bind(connID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return ErrRoomNotFound
	}
	if _, busy := s.conns[connID]; busy {
		return ErrAlreadyInRoom
	}
	s.conns[connID] = code
	return nil
}
