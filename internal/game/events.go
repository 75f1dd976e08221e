// internal/game/events.go
package game

import "github.com/jason-s-yu/blindtest/internal/models"

// EventType names an outbound message.
type EventType string

const (
	EventPlayerJoined    EventType = "playerJoined"
	EventSettingsUpdated EventType = "settingsUpdated"
	EventGameStarted     EventType = "gameStarted"
	EventRoundOver       EventType = "roundOver"
	EventGuessResult     EventType = "guessResult"
	EventReadyUpdate     EventType = "readyUpdate"
	EventStartNextRound  EventType = "startNextRound"
	EventGameOver        EventType = "gameOver"
	EventPlayersUpdated  EventType = "playersUpdated"
	EventPlayerLeft      EventType = "playerLeft"
)

// Event is a single message for one or more connections.
type Event struct {
	Type EventType   `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Notifier delivers events. Broadcast receives the member list as it was when the
// event was produced, under the room lock. Implementations must not block.
type Notifier interface {
	Broadcast(members []string, ev Event)
	Send(connID string, ev Event)
}

// --- payloads ---

type PlayersPayload struct {
	Players []models.Player `json:"players"`
}

type SettingsPayload struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type GameStartedPayload struct {
	Songs       []models.Song `json:"songs"`
	TotalRounds int           `json:"totalRounds"`
}

// RoundOverPayload is the round outcome. WinnerID is nil when nobody guessed right.
type RoundOverPayload struct {
	WinnerID      *string         `json:"winnerId"`
	Guess         string          `json:"guess"`
	CorrectSong   bool            `json:"correctSong"`
	CorrectArtist bool            `json:"correctArtist"`
	PointsAwarded int             `json:"pointsAwarded"`
	Round         int             `json:"round"`
	Players       []models.Player `json:"players"`
}

type GuessResultPayload struct {
	WasCorrect bool `json:"wasCorrect"`
}

type ReadyPayload struct {
	ReadyPlayers []string `json:"readyPlayers"`
}

type RoundPayload struct {
	Round int `json:"round"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// noOneGuessed is the guess text reported when a round ends without a winner.
const noOneGuessed = "No one guessed correctly"
