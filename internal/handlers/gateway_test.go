package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSongs struct {
	songs []models.Song
	err   error
}

func (s *stubSongs) FetchSongs(_ context.Context, _, _ string, count int) ([]models.Song, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.songs[:min(count, len(s.songs))], nil
}

type testEnv struct {
	srv   *httptest.Server
	coord *game.Coordinator
	hub   *Hub
}

var gatewaySongs = []models.Song{
	{ID: 11, Title: "Hello", Artist: models.Artist{Name: "Adele"}},
	{ID: 12, Title: "Toxic", Artist: models.Artist{Name: "Britney Spears"}},
}

func newTestEnv(t *testing.T) *testEnv {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := metrics.New("blindtest_test")

	hub := NewHub(logger, m)
	coord := game.NewCoordinator(game.NewRoomStore(), hub, logger, game.WithMetrics(m))
	gw := NewGateway(coord, hub, logger, m)
	gw.MaxSongs = 5
	api := NewAPI(coord, &stubSongs{songs: gatewaySongs}, m, func(code string) string {
		return "https://blind.test/join/" + code
	}, logger)

	srv := httptest.NewServer(NewRouter(gw, api, logger))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, coord: coord, hub: hub}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "test done") })
	return c
}

type frame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, c *websocket.Conn, event string, id int64, data interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := map[string]interface{}{"event": event, "data": data}
	if id != 0 {
		msg["id"] = id
	}
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

func sendRaw(t *testing.T, c *websocket.Conn, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(raw)))
}

// readUntil reads frames until one with the given event arrives.
func readUntil(t *testing.T, c *websocket.Conn, event string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, c, &f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func decodeData[T any](t *testing.T, f frame) T {
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

// openRoom creates a room with a and joins it with b.
func openRoom(t *testing.T, a, b *websocket.Conn) string {
	send(t, a, EventCreateRoom, 1, map[string]string{"username": "alice"})
	created := decodeData[AckPayload](t, readUntil(t, a, EventAck))
	require.Equal(t, "ok", created.Status)
	require.Len(t, created.RoomID, 6)

	send(t, b, EventJoinRoom, 2, map[string]string{"roomId": strings.ToLower(created.RoomID), "username": "bob"})
	joined := readUntil(t, b, EventAck)
	require.NotNil(t, joined.ID)
	assert.Equal(t, int64(2), *joined.ID)
	ack := decodeData[AckPayload](t, joined)
	require.Equal(t, "ok", ack.Status)
	require.Len(t, ack.Players, 2)
	assert.Equal(t, "alice", ack.Players[0].Username)
	return created.RoomID
}

func TestGatewayCreateAndJoin(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	code := openRoom(t, a, b)

	joined := decodeData[game.PlayersPayload](t, readUntil(t, a, string(game.EventPlayerJoined)))
	assert.Len(t, joined.Players, 2)
	assert.Equal(t, "bob", joined.Players[1].Username)

	c := env.dial(t)
	send(t, c, EventJoinRoom, 3, map[string]string{"roomId": code})
	full := decodeData[AckPayload](t, readUntil(t, c, EventAck))
	assert.Equal(t, "error", full.Status)
	assert.Equal(t, "Room is full.", full.Message)
}

func TestGatewayRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)

	sendRaw(t, a, `{"event":`)
	bad := decodeData[ErrorPayload](t, readUntil(t, a, EventError))
	assert.Contains(t, bad.Message, "malformed")

	send(t, a, "dance", 0, nil)
	unknown := decodeData[ErrorPayload](t, readUntil(t, a, EventError))
	assert.Contains(t, unknown.Message, "unknown event")

	send(t, a, EventJoinRoom, 9, map[string]string{"roomId": "?"})
	ack := readUntil(t, a, EventAck)
	require.NotNil(t, ack.ID)
	assert.Equal(t, int64(9), *ack.ID)
	assert.Equal(t, "error", decodeData[AckPayload](t, ack).Status)

	assert.Equal(t, 0, env.coord.Store.Count(), "nothing reached a room")
}

func TestGatewayFullRound(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	code := openRoom(t, a, b)

	send(t, a, EventSettingsChanged, 0, map[string]string{"roomId": code, "category": "rock", "difficulty": "hard"})
	settings := decodeData[game.SettingsPayload](t, readUntil(t, b, string(game.EventSettingsUpdated)))
	assert.Equal(t, "rock", settings.Category)

	send(t, a, EventStartGame, 0, map[string]interface{}{"roomId": code, "songs": gatewaySongs})
	started := decodeData[game.GameStartedPayload](t, readUntil(t, b, string(game.EventGameStarted)))
	assert.Equal(t, 2, started.TotalRounds)
	readUntil(t, a, string(game.EventGameStarted))

	send(t, a, EventPlayerReady, 0, map[string]string{"roomId": code})
	send(t, b, EventPlayerReady, 0, map[string]string{"roomId": code})
	round := decodeData[game.RoundPayload](t, readUntil(t, a, string(game.EventStartNextRound)))
	assert.Equal(t, 1, round.Round)
	readUntil(t, b, string(game.EventStartNextRound))

	send(t, b, EventSubmitGuess, 0, map[string]interface{}{
		"roomId": code, "guess": "nope", "song": gatewaySongs[0], "gameMode": "song",
	})
	wrong := decodeData[game.GuessResultPayload](t, readUntil(t, b, string(game.EventGuessResult)))
	assert.False(t, wrong.WasCorrect)

	send(t, a, EventSubmitGuess, 0, map[string]interface{}{
		"roomId": code, "guess": "helo", "song": gatewaySongs[0], "gameMode": "song",
	})
	for _, c := range []*websocket.Conn{a, b} {
		over := decodeData[game.RoundOverPayload](t, readUntil(t, c, string(game.EventRoundOver)))
		require.NotNil(t, over.WinnerID)
		assert.Equal(t, 10, over.PointsAwarded)
		assert.Equal(t, 10, over.Players[0].Score)
	}

	info, err := env.coord.RoomInfo(code)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseRoundResolved, info.Phase)
}

func TestGatewayTooManySongs(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	code := openRoom(t, a, b)

	songs := make([]models.Song, 6)
	for i := range songs {
		songs[i] = models.Song{ID: int64(i + 1), Title: "t"}
	}
	send(t, a, EventStartGame, 0, map[string]interface{}{"roomId": code, "songs": songs})
	msg := decodeData[ErrorPayload](t, readUntil(t, a, EventError))
	assert.Equal(t, "too many songs", msg.Message)

	info, err := env.coord.RoomInfo(code)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseLobby, info.Phase)
}

func TestGatewayDisconnectClosesRoom(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	code := openRoom(t, a, b)

	require.NoError(t, b.Close(websocket.StatusNormalClosure, "bye"))
	left := decodeData[game.PlayerLeftPayload](t, readUntil(t, a, string(game.EventPlayerLeft)))
	assert.NotEmpty(t, left.PlayerID)

	assert.Eventually(t, func() bool {
		_, err := env.coord.RoomInfo(code)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayRequiresSubprotocol(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestHTTPRoutes(t *testing.T) {
	env := newTestEnv(t)

	get := func(path string) *http.Response {
		resp, err := http.Get(env.srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, get("/metrics").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/rooms/NOPE00").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/rooms/NOPE00/qr").StatusCode)

	var cats struct {
		Categories []struct{ ID string } `json:"categories"`
	}
	require.NoError(t, json.NewDecoder(get("/api/categories").Body).Decode(&cats))
	assert.NotEmpty(t, cats.Categories)

	var songs struct {
		Songs []models.Song `json:"songs"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.NewDecoder(get("/api/songs?category=pop&count=1").Body).Decode(&songs))
	assert.Equal(t, 1, songs.Total)
	assert.Equal(t, http.StatusBadRequest, get("/api/songs?count=zero").StatusCode)

	code, err := env.coord.CreateRoom("http-host", "host")
	require.NoError(t, err)

	resp := get("/rooms/" + strings.ToLower(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, code, info.ID)
	assert.Equal(t, game.PhaseLobby, info.Phase)

	qr := get("/rooms/" + code + "/qr")
	assert.Equal(t, http.StatusOK, qr.StatusCode)
	assert.Equal(t, "image/png", qr.Header.Get("Content-Type"))
}
