// internal/handlers/http.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jason-s-yu/blindtest/internal/catalog"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	"github.com/jason-s-yu/blindtest/internal/middleware"
	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// SongSource resolves song lists for the lobby before startGame.
type SongSource interface {
	FetchSongs(ctx context.Context, category, difficulty string, count int) ([]models.Song, error)
}

// API holds the plain HTTP endpoints.
type API struct {
	Coord   *game.Coordinator
	Songs   SongSource
	Metrics *metrics.Metrics
	// ShareURL builds the join link encoded in a room's QR code.
	ShareURL func(code string) string

	logger *logrus.Logger
}

func NewAPI(coord *game.Coordinator, songs SongSource, m *metrics.Metrics, shareURL func(string) string, logger *logrus.Logger) *API {
	return &API{Coord: coord, Songs: songs, Metrics: m, ShareURL: shareURL, logger: logger}
}

// NewRouter wires every route, wrapped in the request logger.
func NewRouter(gw *Gateway, api *API, logger *logrus.Logger) http.Handler {
	router := httprouter.New()
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, rec interface{}) {
		logger.Errorf("panic serving %s: %v", r.URL.Path, rec)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}

	router.HandlerFunc(http.MethodGet, "/ws", gw.ServeWS)
	router.GET("/healthz", api.healthz)
	if api.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", api.Metrics.Handler())
	}
	router.GET("/api/categories", api.categories)
	router.GET("/api/songs", api.songs)
	router.GET("/rooms/:code", api.roomInfo)
	router.GET("/rooms/:code/qr", api.roomQR)

	return middleware.LogMiddleware(logger)(router)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Ok\n"))
}

func (a *API) categories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories":   catalog.Categories(),
		"difficulties": catalog.Difficulties(),
	})
}

// songs serves GET /api/songs?category=&difficulty=&count=.
func (a *API) songs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	category := q.Get("category")
	difficulty := q.Get("difficulty")
	count := catalog.DefaultCount
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	songs, err := a.Songs.FetchSongs(ctx, category, difficulty, count)
	switch {
	case errors.Is(err, catalog.ErrUnknownDifficulty):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, catalog.ErrNoTracks):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		a.logger.Warnf("fetch songs %s/%s: %v", category, difficulty, err)
		writeError(w, http.StatusBadGateway, "failed to fetch songs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"songs":      songs,
		"category":   category,
		"difficulty": difficulty,
		"total":      len(songs),
	})
}

func (a *API) roomInfo(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	info, err := a.Coord.RoomInfo(roomCode(ps.ByName("code")))
	if errors.Is(err, game.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// roomQR serves a PNG QR code of the room's join link.
func (a *API) roomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := roomCode(ps.ByName("code"))
	if _, err := a.Coord.RoomInfo(code); err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	png, err := qrcode.Encode(a.ShareURL(code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
