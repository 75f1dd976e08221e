// internal/game/room.go
package game

import (
	"sync"
	"time"

	"github.com/jason-s-yu/blindtest/internal/models"
)

// MaxPlayers is the hard room capacity.
const MaxPlayers = 2

// Phase is the lifecycle position of a room.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseStarting      Phase = "starting"
	PhasePlaying       Phase = "playing"
	PhaseRoundResolved Phase = "round_resolved"
	PhaseGameOver      Phase = "game_over"
)

// Settings is the host-controlled game configuration.
type Settings struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// DefaultSettings is what a new room starts with.
var DefaultSettings = Settings{Category: "pop", Difficulty: "medium"}

// roomState is one variant of the room lifecycle. Each variant only carries the
// fields that are meaningful in that phase.
type roomState interface {
	phase() Phase
}

type lobbyPhase struct{}

// startingPhase is the pre-game ready check.
type startingPhase struct {
	run   *gameRun
	ready connSet
}

type playingPhase struct {
	run     *gameRun
	guessed connSet
}

// resolvedPhase is the post-round ready check.
type resolvedPhase struct {
	run   *gameRun
	ready connSet
}

type gameOverPhase struct {
	run *gameRun
}

func (*lobbyPhase) phase() Phase    { return PhaseLobby }
func (*startingPhase) phase() Phase { return PhaseStarting }
func (*playingPhase) phase() Phase  { return PhasePlaying }
func (*resolvedPhase) phase() Phase { return PhaseRoundResolved }
func (*gameOverPhase) phase() Phase { return PhaseGameOver }

// gameRun is the fixed song list of a started game and the 1-based round counter.
type gameRun struct {
	songs     []models.Song
	round     int
	startedAt time.Time
}

func (g *gameRun) total() int { return len(g.songs) }

func (g *gameRun) current() models.Song { return g.songs[g.round-1] }

// connSet is a set of connection ids.
type connSet map[string]struct{}

func (s connSet) add(id string) { s[id] = struct{}{} }

func (s connSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// covers reports whether every player is in the set.
func (s connSet) covers(players []*models.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !s.has(p.ID) {
			return false
		}
	}
	return true
}

// ordered lists the members of s in player order.
func (s connSet) ordered(players []*models.Player) []string {
	out := make([]string, 0, len(s))
	for _, p := range players {
		if s.has(p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

// Room is the shared state of one two-player game. All fields are guarded by Mu;
// methods with an Unsafe suffix or unexported helpers assume Mu is held.
type Room struct {
	ID        string
	Players   []*models.Player
	Settings  Settings
	CreatedAt time.Time

	state  roomState
	closed bool
	seq    int

	Mu sync.Mutex
}

func newRoom(code string) *Room {
	return &Room{
		ID:        code,
		Players:   make([]*models.Player, 0, MaxPlayers),
		Settings:  DefaultSettings,
		CreatedAt: time.Now(),
		state:     &lobbyPhase{},
	}
}

// PhaseUnsafe returns the current phase.
func (r *Room) PhaseUnsafe() Phase {
	return r.state.phase()
}

// memberIDs is the current member list in join order.
func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Room) membersExcept(connID string) []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != connID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) player(connID string) *models.Player {
	for _, p := range r.Players {
		if p.ID == connID {
			return p
		}
	}
	return nil
}

// hostID is the first player's id.
func (r *Room) hostID() string {
	if len(r.Players) == 0 {
		return ""
	}
	return r.Players[0].ID
}

func (r *Room) snapshot() []models.Player {
	return models.ClonePlayers(r.Players)
}

// run returns the active game, or nil while in the lobby.
func (r *Room) run() *gameRun {
	switch st := r.state.(type) {
	case *startingPhase:
		return st.run
	case *playingPhase:
		return st.run
	case *resolvedPhase:
		return st.run
	case *gameOverPhase:
		return st.run
	}
	return nil
}
