// internal/handlers/ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	"github.com/jason-s-yu/blindtest/internal/middleware"
	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "blindtest"

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// Gateway accepts websocket clients and turns their frames into coordinator calls.
type Gateway struct {
	Coord *game.Coordinator
	Hub   *Hub

	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
	// MaxSongs caps the length of a startGame song list.
	MaxSongs int
	// ReadLimit caps the size of one inbound frame.
	ReadLimit int64

	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewGateway(coord *game.Coordinator, hub *Hub, logger *logrus.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		Coord:     coord,
		Hub:       hub,
		MaxSongs:  50,
		ReadLimit: 256 << 10,
		logger:    logger,
		metrics:   m,
	}
}

// ServeWS upgrades the request and runs the connection until it closes. The room
// the connection was in is torn down on exit.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: g.OriginPatterns,
	})
	if err != nil {
		g.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the blindtest subprotocol")
		return
	}
	c.SetReadLimit(g.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := g.Hub.Register(c, r.RemoteAddr, cancel)
	middleware.LogWebSocketConnect(g.logger, conn.ID, conn.Remote)

	go g.writePump(ctx, c, conn)
	readErr := g.readPump(ctx, c, conn)

	g.Coord.Disconnect(conn.ID)
	g.Hub.Unregister(conn.ID)
	middleware.LogWebSocketDisconnect(g.logger, conn.ID, conn.Remote, readErr)
}

// readPump handles inbound frames one at a time until the connection ends.
// Normal closures return nil.
func (g *Gateway) readPump(ctx context.Context, c *websocket.Conn, conn *Connection) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			g.Hub.Reply(conn.ID, EventError, nil, ErrorPayload{Message: "binary frames are not supported"})
			continue
		}
		g.handleMessage(conn, msg)
	}
}

// handleMessage decodes and dispatches one frame. A panic is logged and reported
// to the sender; it never takes down the connection.
func (g *Gateway) handleMessage(conn *Connection, raw []byte) {
	start := time.Now()
	event := "unknown"
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.WithFields(logrus.Fields{"conn": conn.ID, "event": event}).
				Errorf("panic handling message: %v\n%s", rec, debug.Stack())
			g.Hub.Reply(conn.ID, EventError, nil, ErrorPayload{Message: "internal error"})
		}
		g.metrics.ObserveMessage(event, time.Since(start))
	}()

	env, msg, err := Decode(raw)
	if isKnownEvent(env.Event) {
		event = env.Event
	}
	if err != nil {
		g.reject(conn, env, err)
		return
	}
	g.dispatch(conn, env, msg)
}

// reject answers a frame that never reached a room.
func (g *Gateway) reject(conn *Connection, env Envelope, err error) {
	g.logger.WithField("conn", conn.ID).Debugf("rejected %q: %v", env.Event, err)
	if expectsAck(env.Event) {
		g.Hub.Reply(conn.ID, EventAck, env.ID, AckPayload{Status: "error", Message: ackMessage(err)})
		return
	}
	g.Hub.Reply(conn.ID, EventError, env.ID, ErrorPayload{Message: err.Error()})
}

func (g *Gateway) dispatch(conn *Connection, env Envelope, msg Message) {
	switch m := msg.(type) {
	case *CreateRoom:
		code, err := g.Coord.CreateRoom(conn.ID, strings.TrimSpace(m.Username))
		g.ack(conn, env, code, nil, err)

	case *JoinRoom:
		code := roomCode(m.RoomID)
		players, err := g.Coord.JoinRoom(code, conn.ID, strings.TrimSpace(m.Username))
		g.ack(conn, env, code, players, err)

	case *SettingsChanged:
		err := g.Coord.ChangeSettings(roomCode(m.RoomID), conn.ID, strings.TrimSpace(m.Category), m.Difficulty)
		g.ignored(conn, env, err)

	case *StartGame:
		if g.MaxSongs > 0 && len(m.Songs) > g.MaxSongs {
			g.Hub.Reply(conn.ID, EventError, env.ID, ErrorPayload{Message: "too many songs"})
			return
		}
		g.ignored(conn, env, g.Coord.StartGame(roomCode(m.RoomID), conn.ID, m.Songs))

	case *SubmitGuess:
		err := g.Coord.SubmitGuess(roomCode(m.RoomID), conn.ID, m.Guess, m.Song.ID, m.Mode())
		g.ignored(conn, env, err)

	case *PlayerReady:
		g.ignored(conn, env, g.Coord.PlayerReady(roomCode(m.RoomID), conn.ID))

	case *SetUsername:
		g.ignored(conn, env, g.Coord.SetUsername(conn.ID, strings.TrimSpace(m.Username)))

	default:
		g.logger.Errorf("no dispatch for %T", msg)
	}
}

// ack answers createRoom / joinRoom.
func (g *Gateway) ack(conn *Connection, env Envelope, code string, players []models.Player, err error) {
	if err != nil {
		g.logger.WithFields(logrus.Fields{"conn": conn.ID, "room": code}).Debugf("%s failed: %v", env.Event, err)
		g.Hub.Reply(conn.ID, EventAck, env.ID, AckPayload{Status: "error", Message: ackMessage(err)})
		return
	}
	g.Hub.Reply(conn.ID, EventAck, env.ID, AckPayload{Status: "ok", RoomID: code, Players: players})
}

// ignored logs the outcome of a fire-and-forget operation. The client is not told.
func (g *Gateway) ignored(conn *Connection, env Envelope, err error) {
	if err == nil {
		return
	}
	g.logger.WithField("conn", conn.ID).Debugf("%s ignored: %v", env.Event, err)
}

// writePump drains the connection queue onto the socket and keeps it alive with pings.
func (g *Gateway) writePump(ctx context.Context, c *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				g.logger.Warnf("failed to write to websocket for conn %s: %v", conn.ID, err)
				conn.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				g.logger.Warnf("failed to ping conn %s: %v, assuming disconnect", conn.ID, err)
				conn.cancel()
				return
			}
		}
	}
}
