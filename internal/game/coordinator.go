// internal/game/coordinator.go
package game

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
)

// ResultRecorder persists the final standings of a finished game.
type ResultRecorder interface {
	RecordGame(ctx context.Context, result models.GameResult) error
}

// EventPublisher ships room lifecycle records to the event log.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, rec models.RoomEventRecord) error
}

// Coordinator runs the room session state machine. Every operation on a room holds
// that room's Mu for its whole duration, events included, so the effects of two
// messages for the same room are never interleaved. Different rooms proceed in parallel.
type Coordinator struct {
	Store    *RoomStore
	Notifier Notifier

	logger  *logrus.Logger
	metrics *metrics.Metrics
	results ResultRecorder
	events  EventPublisher

	// SideEffectTimeout bounds the async recorder / publisher calls.
	SideEffectTimeout time.Duration
}

// Option configures optional collaborators of a Coordinator.
type Option func(*Coordinator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithResultRecorder(r ResultRecorder) Option {
	return func(c *Coordinator) { c.results = r }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// NewCoordinator wires a coordinator over store, delivering events through n.
func NewCoordinator(store *RoomStore, n Notifier, logger *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		Store:             store,
		Notifier:          n,
		logger:            logger,
		SideEffectTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RoomSummary is a read-only view of a room for HTTP lookups.
type RoomSummary struct {
	ID          string          `json:"roomId"`
	Phase       Phase           `json:"phase"`
	Players     []models.Player `json:"players"`
	Settings    Settings        `json:"settings"`
	Round       int             `json:"round,omitempty"`
	TotalRounds int             `json:"totalRounds,omitempty"`
}

// lockRoom fetches the live room and locks it. A room removed after the lookup
// but before the lock is reported as not found.
func (c *Coordinator) lockRoom(code string) (*Room, error) {
	room, ok := c.Store.Get(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	room.Mu.Lock()
	if room.closed {
		room.Mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (c *Coordinator) broadcast(room *Room, ev Event) {
	c.Notifier.Broadcast(room.memberIDs(), ev)
}

func (c *Coordinator) log(room *Room, connID string) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{"room": room.ID, "conn": connID})
}

// CreateRoom opens a new room with connID as host and returns its code.
func (c *Coordinator) CreateRoom(connID, username string) (string, error) {
	room, err := c.Store.Create(connID, username)
	if err != nil {
		return "", err
	}
	c.metrics.SetActiveRooms(c.Store.Count())

	room.Mu.Lock()
	defer room.Mu.Unlock()
	c.log(room, connID).Info("room created")
	c.publishUnsafe(room, "room_created", connID, nil)
	return room.ID, nil
}

// JoinRoom admits connID as the second player. Either the player is fully admitted
// and a playerJoined event goes to every member, or nothing changes.
func (c *Coordinator) JoinRoom(code, connID, username string) ([]models.Player, error) {
	room, err := c.lockRoom(code)
	if err != nil {
		return nil, err
	}
	defer room.Mu.Unlock()

	if room.PhaseUnsafe() != PhaseLobby {
		return nil, ErrInvalidState
	}
	if len(room.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if err := c.Store.bind(connID, room.ID); err != nil {
		return nil, err
	}
	room.Players = append(room.Players, &models.Player{ID: connID, Username: username})

	players := room.snapshot()
	c.broadcast(room, Event{Type: EventPlayerJoined, Data: PlayersPayload{Players: players}})
	c.log(room, connID).Info("player joined")
	c.publishUnsafe(room, "player_joined", connID, map[string]interface{}{"username": username})
	return players, nil
}

// ChangeSettings updates category/difficulty. Only the host may do this; the new
// settings are sent to the other player.
func (c *Coordinator) ChangeSettings(code, requesterID, category, difficulty string) error {
	room, err := c.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.Mu.Unlock()

	if room.player(requesterID) == nil {
		return ErrNotInRoom
	}
	if room.hostID() != requesterID {
		return ErrNotHost
	}
	room.Settings = Settings{Category: category, Difficulty: difficulty}
	c.Notifier.Broadcast(room.membersExcept(requesterID), Event{
		Type: EventSettingsUpdated,
		Data: SettingsPayload{Category: category, Difficulty: difficulty},
	})
	c.log(room, requesterID).Debugf("settings changed: %s/%s", category, difficulty)
	return nil
}

// StartGame fixes the song list and moves the room into the pre-game ready check.
func (c *Coordinator) StartGame(code, requesterID string, songs []models.Song) error {
	room, err := c.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.Mu.Unlock()

	if room.player(requesterID) == nil {
		return ErrNotInRoom
	}
	if room.PhaseUnsafe() != PhaseLobby || len(room.Players) != MaxPlayers {
		return ErrInvalidState
	}
	if len(songs) == 0 {
		return ErrNoSongs
	}

	fixed := make([]models.Song, len(songs))
	copy(fixed, songs)
	for _, p := range room.Players {
		p.Score = 0
	}
	run := &gameRun{songs: fixed, round: 1, startedAt: time.Now()}
	room.state = &startingPhase{run: run, ready: connSet{}}

	c.broadcast(room, Event{
		Type: EventGameStarted,
		Data: GameStartedPayload{Songs: fixed, TotalRounds: run.total()},
	})
	c.log(room, requesterID).Infof("game started with %d songs", run.total())
	c.publishUnsafe(room, "game_started", requesterID, map[string]interface{}{
		"total_rounds": run.total(),
		"category":     room.Settings.Category,
		"difficulty":   room.Settings.Difficulty,
	})
	return nil
}

// SubmitGuess scores one guess for the current round. The first correct guess ends
// the round; a wrong guess is reported privately, and the round ends with no winner
// once every player has guessed wrong.
func (c *Coordinator) SubmitGuess(code, connID, guess string, songID int64, mode GameMode) error {
	room, err := c.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.Mu.Unlock()

	p := room.player(connID)
	if p == nil {
		return ErrNotInRoom
	}
	st, ok := room.state.(*playingPhase)
	if !ok {
		return ErrInvalidState
	}
	song := st.run.current()
	if song.ID != songID {
		return ErrSongMismatch
	}
	if st.guessed.has(connID) {
		return ErrDuplicateGuess
	}
	if strings.TrimSpace(guess) == "" {
		return ErrEmptyGuess
	}
	st.guessed.add(connID)

	res := Score(guess, song, mode)
	if res.Points > 0 {
		p.Score += res.Points
		winner := connID
		room.state = &resolvedPhase{run: st.run, ready: connSet{}}
		c.endRoundUnsafe(room, RoundOverPayload{
			WinnerID:      &winner,
			Guess:         guess,
			CorrectSong:   res.SongCorrect,
			CorrectArtist: res.ArtistCorrect,
			PointsAwarded: res.Points,
			Round:         st.run.round,
			Players:       room.snapshot(),
		})
		c.metrics.RoundResolved("correct")
		return nil
	}

	c.Notifier.Send(connID, Event{Type: EventGuessResult, Data: GuessResultPayload{WasCorrect: false}})
	if st.guessed.covers(room.Players) {
		room.state = &resolvedPhase{run: st.run, ready: connSet{}}
		c.endRoundUnsafe(room, RoundOverPayload{
			Guess:   noOneGuessed,
			Round:   st.run.round,
			Players: room.snapshot(),
		})
		c.metrics.RoundResolved("nobody")
	}
	return nil
}

func (c *Coordinator) endRoundUnsafe(room *Room, outcome RoundOverPayload) {
	c.broadcast(room, Event{Type: EventRoundOver, Data: outcome})

	winner := ""
	if outcome.WinnerID != nil {
		winner = *outcome.WinnerID
	}
	c.log(room, winner).Infof("round %d over", outcome.Round)
	c.publishUnsafe(room, "round_over", winner, map[string]interface{}{
		"round":          outcome.Round,
		"points_awarded": outcome.PointsAwarded,
		"correct_song":   outcome.CorrectSong,
		"correct_artist": outcome.CorrectArtist,
	})
}

// PlayerReady records connID in the ready check. Once every player is ready the
// room advances exactly once: to round 1 from the pre-game check, to the next
// round, or to game over after the last round.
func (c *Coordinator) PlayerReady(code, connID string) error {
	room, err := c.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.Mu.Unlock()

	if room.player(connID) == nil {
		return ErrNotInRoom
	}

	var ready connSet
	switch st := room.state.(type) {
	case *startingPhase:
		ready = st.ready
	case *resolvedPhase:
		ready = st.ready
	default:
		return ErrInvalidState
	}
	if ready.has(connID) {
		return nil
	}
	ready.add(connID)
	c.broadcast(room, Event{Type: EventReadyUpdate, Data: ReadyPayload{ReadyPlayers: ready.ordered(room.Players)}})

	if !ready.covers(room.Players) {
		return nil
	}

	switch st := room.state.(type) {
	case *startingPhase:
		room.state = &playingPhase{run: st.run, guessed: connSet{}}
		c.broadcast(room, Event{Type: EventStartNextRound, Data: RoundPayload{Round: st.run.round}})
	case *resolvedPhase:
		if st.run.round >= st.run.total() {
			c.finishGameUnsafe(room, st.run)
			return nil
		}
		st.run.round++
		room.state = &playingPhase{run: st.run, guessed: connSet{}}
		c.broadcast(room, Event{Type: EventStartNextRound, Data: RoundPayload{Round: st.run.round}})
	}
	return nil
}

func (c *Coordinator) finishGameUnsafe(room *Room, run *gameRun) {
	room.state = &gameOverPhase{run: run}
	players := room.snapshot()
	c.broadcast(room, Event{Type: EventGameOver, Data: PlayersPayload{Players: players}})
	c.metrics.GameFinished()

	result := models.GameResult{
		RoomID:      room.ID,
		Category:    room.Settings.Category,
		Difficulty:  room.Settings.Difficulty,
		TotalRounds: run.total(),
		Players:     players,
		StartedAt:   run.startedAt,
		FinishedAt:  time.Now(),
	}
	if c.results != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.SideEffectTimeout)
			defer cancel()
			if err := c.results.RecordGame(ctx, result); err != nil {
				c.logger.Warnf("Room %s: failed to record game result: %v", result.RoomID, err)
			}
		}()
	}
	c.publishUnsafe(room, "game_over", "", map[string]interface{}{"winner": result.Winner()})
	c.log(room, "").Info("game over")
	c.closeRoomUnsafe(room)
}

// SetUsername renames connID in whichever room it is in.
func (c *Coordinator) SetUsername(connID, username string) error {
	code, ok := c.Store.RoomOf(connID)
	if !ok {
		return ErrRoomNotFound
	}
	room, err := c.lockRoom(code)
	if err != nil {
		return err
	}
	defer room.Mu.Unlock()

	p := room.player(connID)
	if p == nil {
		return ErrNotInRoom
	}
	p.Username = username
	c.broadcast(room, Event{Type: EventPlayersUpdated, Data: PlayersPayload{Players: room.snapshot()}})
	return nil
}

// Disconnect tears down the room connID was in and tells the remaining player.
// A connection that is in no room is ignored.
func (c *Coordinator) Disconnect(connID string) {
	code, ok := c.Store.RoomOf(connID)
	if !ok {
		return
	}
	room, err := c.lockRoom(code)
	if err != nil {
		return
	}
	defer room.Mu.Unlock()

	if room.player(connID) == nil {
		return
	}
	if remaining := room.membersExcept(connID); len(remaining) > 0 {
		c.Notifier.Broadcast(remaining, Event{Type: EventPlayerLeft, Data: PlayerLeftPayload{PlayerID: connID}})
	}
	c.log(room, connID).Infof("player disconnected in phase %s, closing room", room.PhaseUnsafe())
	c.publishUnsafe(room, "room_closed", connID, map[string]interface{}{"phase": string(room.PhaseUnsafe())})
	c.closeRoomUnsafe(room)
}

// closeRoomUnsafe marks the room dead and drops it from the registry.
func (c *Coordinator) closeRoomUnsafe(room *Room) {
	room.closed = true
	c.Store.Remove(room.ID)
	c.metrics.SetActiveRooms(c.Store.Count())
}

// RoomInfo returns a snapshot of a live room.
func (c *Coordinator) RoomInfo(code string) (RoomSummary, error) {
	room, err := c.lockRoom(code)
	if err != nil {
		return RoomSummary{}, err
	}
	defer room.Mu.Unlock()

	sum := RoomSummary{
		ID:       room.ID,
		Phase:    room.PhaseUnsafe(),
		Players:  room.snapshot(),
		Settings: room.Settings,
	}
	if run := room.run(); run != nil {
		sum.Round = run.round
		sum.TotalRounds = run.total()
	}
	return sum, nil
}

// publishUnsafe hands a lifecycle record to the event publisher without blocking.
func (c *Coordinator) publishUnsafe(room *Room, eventType, connID string, payload map[string]interface{}) {
	if c.events == nil {
		return
	}
	room.seq++
	rec := models.RoomEventRecord{
		ID:           uuid.New(),
		RoomID:       room.ID,
		Seq:          room.seq,
		EventType:    eventType,
		ConnectionID: connID,
		Payload:      payload,
		Timestamp:    time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.SideEffectTimeout)
		defer cancel()
		if err := c.events.PublishRoomEvent(ctx, rec); err != nil {
			c.logger.Warnf("Room %s: failed to publish %s event: %v", rec.RoomID, rec.EventType, err)
		}
	}()
}
