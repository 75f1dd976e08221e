// internal/catalog/deezer.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Deezer API.
const DefaultBaseURL = "https://api.deezer.com"

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrNoTracks          = errors.New("no playable tracks found")
)

// TrackCache stores raw source tracklists between fetches.
type TrackCache interface {
	GetTracks(ctx context.Context, key string) ([]models.Song, bool, error)
	SetTracks(ctx context.Context, key string, songs []models.Song, ttl time.Duration) error
}

// Client fetches playable song lists from Deezer.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Cache    TrackCache
	CacheTTL time.Duration

	logger  *logrus.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewClient returns a client against baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:  baseURL,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		CacheTTL: 10 * time.Minute,
		logger:   logger,
		shuffle:  rand.Shuffle,
	}
}

type deezerTrack struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Readable bool   `json:"readable"`
	Preview  string `json:"preview"`
	Duration int    `json:"duration"`
	Artist   struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		PictureMedium string `json:"picture_medium"`
	} `json:"artist"`
	Album struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Cover       string `json:"cover"`
		CoverMedium string `json:"cover_medium"`
	} `json:"album"`
}

type deezerRadio struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Tracklist string `json:"tracklist"`
}

// apiError is how Deezer reports failures inside a 200 response.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type page[T any] struct {
	Data  []T       `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

func (t deezerTrack) song() models.Song {
	picture := t.Artist.PictureMedium
	if picture == "" {
		picture = t.Artist.Picture
	}
	cover := t.Album.CoverMedium
	if cover == "" {
		cover = t.Album.Cover
	}
	return models.Song{
		ID:       t.ID,
		Title:    t.Title,
		Artist:   models.Artist{ID: t.Artist.ID, Name: t.Artist.Name, Picture: picture},
		Album:    models.Album{ID: t.Album.ID, Title: t.Album.Title, Cover: cover},
		Preview:  t.Preview,
		Duration: t.Duration,
	}
}

// FetchSongs returns up to count shuffled playable songs for category at difficulty.
// count defaults to DefaultCount and is capped at MaxCount. An empty difficulty
// means medium; an unknown category falls back to the global chart.
func (c *Client) FetchSongs(ctx context.Context, category, difficulty string, count int) ([]models.Song, error) {
	if count <= 0 {
		count = DefaultCount
	}
	count = min(count, MaxCount)
	if difficulty == "" {
		difficulty = "medium"
	}
	d, ok := LookupDifficulty(difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}

	tracks, err := c.tracks(ctx, category, d)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w for category %q", ErrNoTracks, category)
	}

	songs := make([]models.Song, len(tracks))
	copy(songs, tracks)
	c.shuffle(len(songs), func(i, j int) { songs[i], songs[j] = songs[j], songs[i] })
	return songs[:min(count, len(songs))], nil
}

func cacheKey(category string, d Difficulty) string {
	return "blindtest:catalog:" + category + ":" + d.ID
}

// tracks returns the full filtered source tracklist, from cache when possible.
func (c *Client) tracks(ctx context.Context, category string, d Difficulty) ([]models.Song, error) {
	key := cacheKey(category, d)
	if c.Cache != nil {
		songs, ok, err := c.Cache.GetTracks(ctx, key)
		if err != nil {
			c.logger.Warnf("catalog cache read %s: %v", key, err)
		} else if ok {
			return songs, nil
		}
	}

	songs, err := c.fetchSource(ctx, category, d)
	if err != nil {
		return nil, err
	}
	if c.Cache != nil && len(songs) > 0 {
		if err := c.Cache.SetTracks(ctx, key, songs, c.CacheTTL); err != nil {
			c.logger.Warnf("catalog cache write %s: %v", key, err)
		}
	}
	return songs, nil
}

func (c *Client) fetchSource(ctx context.Context, category string, d Difficulty) ([]models.Song, error) {
	var tracklist string
	if id, ok := playlistIDs[category]; ok {
		tracklist = c.BaseURL + "/playlist/" + id + "/tracks"
	} else if id, ok := genreIDs[category]; ok {
		var radios page[deezerRadio]
		if err := c.getJSON(ctx, c.BaseURL+"/genre/"+id+"/radios", &radios); err != nil {
			return nil, fmt.Errorf("genre %s radios: %w", category, err)
		}
		if len(radios.Data) == 0 || radios.Data[0].Tracklist == "" {
			return nil, fmt.Errorf("%w: genre %q has no radios", ErrNoTracks, category)
		}
		tracklist = radios.Data[0].Tracklist
	} else {
		tracklist = c.BaseURL + "/chart/0/tracks"
	}

	u, err := url.Parse(tracklist)
	if err != nil {
		return nil, fmt.Errorf("parse tracklist url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(d.Limit))
	q.Set("index", strconv.Itoa(d.Offset))
	u.RawQuery = q.Encode()

	var tracks page[deezerTrack]
	if err := c.getJSON(ctx, u.String(), &tracks); err != nil {
		return nil, fmt.Errorf("tracklist for %q: %w", category, err)
	}

	songs := make([]models.Song, 0, len(tracks.Data))
	for _, t := range tracks.Data {
		if t.Preview == "" || !t.Readable {
			continue
		}
		songs = append(songs, t.song())
	}
	c.logger.WithFields(logrus.Fields{
		"category":   category,
		"difficulty": d.ID,
		"fetched":    len(tracks.Data),
		"playable":   len(songs),
	}).Debug("catalog source fetched")
	return songs, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{ apiErr() *apiError }) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deezer returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode deezer response: %w", err)
	}
	if e := out.apiErr(); e != nil {
		return fmt.Errorf("deezer error %d (%s): %s", e.Code, e.Type, e.Message)
	}
	return nil
}

func (p *page[T]) apiErr() *apiError { return p.Error }
