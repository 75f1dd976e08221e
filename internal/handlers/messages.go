// internal/handlers/messages.go
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jason-s-yu/blindtest/internal/catalog"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/models"
)

// Inbound event names.
const (
	EventCreateRoom      = "createRoom"
	EventJoinRoom        = "joinRoom"
	EventSettingsChanged = "settingsChanged"
	EventStartGame       = "startGame"
	EventSubmitGuess     = "submitGuess"
	EventPlayerReady     = "playerReady"
	EventSetUsername     = "setUsername"
)

// Outbound gateway-level events.
const (
	EventAck   = "ack"
	EventError = "error"
)

const (
	maxUsernameLen = 32
	maxCategoryLen = 32
	maxGuessLen    = 200
	roomCodeLen    = 6
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalid      = errors.New("invalid message")
)

// Envelope is an inbound frame: {"event", "id"?, "data"?}.
type Envelope struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a frame sent to the client.
type outbound struct {
	Event string      `json:"event"`
	ID    *int64      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// AckPayload answers createRoom and joinRoom.
type AckPayload struct {
	Status  string          `json:"status"`
	RoomID  string          `json:"roomId,omitempty"`
	Players []models.Player `json:"players,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Message is one decoded inbound variant.
type Message interface {
	Validate() error
}

type CreateRoom struct {
	Username string `json:"username"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type SettingsChanged struct {
	RoomID     string `json:"roomId"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type StartGame struct {
	RoomID string        `json:"roomId"`
	Songs  []models.Song `json:"songs"`
}

type SubmitGuess struct {
	RoomID   string      `json:"roomId"`
	Guess    string      `json:"guess"`
	Song     models.Song `json:"song"`
	GameMode string      `json:"gameMode"`
}

type PlayerReady struct {
	RoomID string `json:"roomId"`
}

type SetUsername struct {
	Username string `json:"username"`
}

var variants = map[string]func() Message{
	EventCreateRoom:      func() Message { return &CreateRoom{} },
	EventJoinRoom:        func() Message { return &JoinRoom{} },
	EventSettingsChanged: func() Message { return &SettingsChanged{} },
	EventStartGame:       func() Message { return &StartGame{} },
	EventSubmitGuess:     func() Message { return &SubmitGuess{} },
	EventPlayerReady:     func() Message { return &PlayerReady{} },
	EventSetUsername:     func() Message { return &SetUsername{} },
}

// isKnownEvent reports whether name is an inbound event the gateway handles.
func isKnownEvent(name string) bool {
	_, ok := variants[name]
	return ok
}

// expectsAck reports whether the client waits for an ack to this event.
func expectsAck(name string) bool {
	return name == EventCreateRoom || name == EventJoinRoom
}

// Decode parses raw into its envelope and validated variant. The envelope is
// returned even when the payload is bad, so the caller can answer to its id.
func Decode(raw []byte) (Envelope, Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	newMsg, ok := variants[env.Event]
	if !ok {
		return env, nil, fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}
	msg := newMsg()
	if data := bytes.TrimSpace(env.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, msg); err != nil {
			return env, nil, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Event, err)
		}
	}
	if err := msg.Validate(); err != nil {
		return env, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return env, msg, nil
}

// roomCode is the canonical (upper case) form of a client supplied room id.
func roomCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validateRoomID(id string) error {
	code := roomCode(id)
	if len(code) != roomCodeLen {
		return fmt.Errorf("roomId must be %d characters", roomCodeLen)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return errors.New("roomId must be alphanumeric")
		}
	}
	return nil
}

func validateUsername(name string, required bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		if required {
			return errors.New("username is required")
		}
		return nil
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return fmt.Errorf("username longer than %d characters", maxUsernameLen)
	}
	return nil
}

func (m *CreateRoom) Validate() error {
	return validateUsername(m.Username, false)
}

func (m *JoinRoom) Validate() error {
	if err := validateRoomID(m.RoomID); err != nil {
		return err
	}
	return validateUsername(m.Username, false)
}

func (m *SettingsChanged) Validate() error {
	if err := validateRoomID(m.RoomID); err != nil {
		return err
	}
	cat := strings.TrimSpace(m.Category)
	if cat == "" || utf8.RuneCountInString(cat) > maxCategoryLen {
		return errors.New("category is required")
	}
	if _, ok := catalog.LookupDifficulty(m.Difficulty); !ok {
		return fmt.Errorf("unknown difficulty %q", m.Difficulty)
	}
	return nil
}

func (m *StartGame) Validate() error {
	if err := validateRoomID(m.RoomID); err != nil {
		return err
	}
	if len(m.Songs) == 0 {
		return errors.New("songs must not be empty")
	}
	for i, s := range m.Songs {
		if s.ID == 0 {
			return fmt.Errorf("song %d has no id", i)
		}
		if strings.TrimSpace(s.Title) == "" && strings.TrimSpace(s.Artist.Name) == "" {
			return fmt.Errorf("song %d has neither title nor artist", i)
		}
	}
	return nil
}

func (m *SubmitGuess) Validate() error {
	if err := validateRoomID(m.RoomID); err != nil {
		return err
	}
	guess := strings.TrimSpace(m.Guess)
	if guess == "" {
		return errors.New("guess is empty")
	}
	if utf8.RuneCountInString(guess) > maxGuessLen {
		return fmt.Errorf("guess longer than %d characters", maxGuessLen)
	}
	if m.Song.ID == 0 {
		return errors.New("song id is required")
	}
	_, err := game.ParseGameMode(m.GameMode)
	return err
}

// Mode is the parsed game mode. Only valid after Validate.
func (m *SubmitGuess) Mode() game.GameMode {
	mode, _ := game.ParseGameMode(m.GameMode)
	return mode
}

func (m *PlayerReady) Validate() error {
	return validateRoomID(m.RoomID)
}

func (m *SetUsername) Validate() error {
	return validateUsername(m.Username, true)
}

// ackMessage is the client facing text for a failed acknowledged operation.
func ackMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return "Room does not exist."
	case errors.Is(err, game.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, game.ErrAlreadyInRoom):
		return "You are already in a room."
	case errors.Is(err, game.ErrInvalidState):
		return "Game already started."
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrInvalid):
		return err.Error()
	}
	return "Something went wrong."
}
