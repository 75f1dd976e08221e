package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeezer struct {
	mu      sync.Mutex
	hits    map[string]int
	queries map[string]string
	srv     *httptest.Server
}

func track(id int64, title, artist string, playable bool) map[string]interface{} {
	preview := "https://cdn.example/" + title + ".mp3"
	return map[string]interface{}{
		"id":       id,
		"title":    title,
		"readable": playable,
		"preview":  preview,
		"duration": 30,
		"artist":   map[string]interface{}{"id": id * 10, "name": artist, "picture_medium": "pic"},
		"album":    map[string]interface{}{"id": id * 100, "title": "Album", "cover": "cover"},
	}
}

func newFakeDeezer(t *testing.T) *fakeDeezer {
	f := &fakeDeezer{hits: map[string]int{}, queries: map[string]string{}}
	tracks := []interface{}{
		track(1, "one", "A", true),
		track(2, "two", "B", true),
		track(3, "three", "C", false),
		track(4, "four", "D", true),
	}
	noPreview := track(5, "five", "E", true)
	noPreview["preview"] = ""
	tracks = append(tracks, noPreview)

	mux := http.NewServeMux()
	writeTracks := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.queries[r.URL.Path] = r.URL.RawQuery
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": tracks})
	}
	mux.HandleFunc("/playlist/1440614715/tracks", writeTracks)
	mux.HandleFunc("/chart/0/tracks", writeTracks)
	mux.HandleFunc("/radio/77/tracks", writeTracks)
	mux.HandleFunc("/genre/132/radios", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{map[string]interface{}{"id": 77, "title": "Pop", "tracklist": f.srv.URL + "/radio/77/tracks"}},
		})
	})
	mux.HandleFunc("/genre/152/radios", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"type": "DataException", "message": "no data", "code": 800},
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDeezer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestClient(f *fakeDeezer) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := NewClient(f.srv.URL, l)
	c.shuffle = func(int, func(i, j int)) {}
	return c
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]models.Song
	ttl  time.Duration
}

func (m *mapCache) GetTracks(_ context.Context, key string) ([]models.Song, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	return s, ok, nil
}

func (m *mapCache) SetTracks(_ context.Context, key string, songs []models.Song, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = songs
	m.ttl = ttl
	return nil
}

func TestFetchSongsPlaylistFiltersUnplayable(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)

	songs, err := c.FetchSongs(context.Background(), "afrobeat", "hard", 10)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, []int64{1, 2, 4}, []int64{songs[0].ID, songs[1].ID, songs[2].ID})
	assert.Equal(t, "A", songs[0].Artist.Name)
	assert.Equal(t, "pic", songs[0].Artist.Picture)
	assert.Equal(t, "cover", songs[0].Album.Cover)
	assert.Equal(t, "index=150&limit=150", f.query("/playlist/1440614715/tracks"))
}

func TestFetchSongsGenreUsesFirstRadio(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)

	songs, err := c.FetchSongs(context.Background(), "pop", "", 2)
	require.NoError(t, err)
	assert.Len(t, songs, 2)
	assert.Equal(t, 1, f.hitCount("/radio/77/tracks"))
	assert.Equal(t, "index=50&limit=100", f.query("/radio/77/tracks"), "medium by default")
}

func TestFetchSongsUnknownCategoryUsesChart(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)

	_, err := c.FetchSongs(context.Background(), "mixed", "easy", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.hitCount("/chart/0/tracks"))
	assert.Equal(t, "index=0&limit=50", f.query("/chart/0/tracks"))
}

func TestFetchSongsErrors(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)

	_, err := c.FetchSongs(context.Background(), "pop", "impossible", 5)
	assert.ErrorIs(t, err, ErrUnknownDifficulty)

	_, err = c.FetchSongs(context.Background(), "rock", "easy", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DataException")
}

func TestFetchSongsShufflesAndCaps(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)
	shuffled := false
	c.shuffle = func(n int, swap func(i, j int)) {
		shuffled = true
		swap(0, n-1)
	}

	songs, err := c.FetchSongs(context.Background(), "afrobeat", "easy", 1)
	require.NoError(t, err)
	assert.True(t, shuffled)
	require.Len(t, songs, 1)
	assert.Equal(t, int64(4), songs[0].ID)
}

func TestFetchSongsUsesCache(t *testing.T) {
	f := newFakeDeezer(t)
	c := newTestClient(f)
	cache := &mapCache{data: map[string][]models.Song{}}
	c.Cache = cache
	c.CacheTTL = time.Minute

	_, err := c.FetchSongs(context.Background(), "afrobeat", "easy", 10)
	require.NoError(t, err)
	_, err = c.FetchSongs(context.Background(), "afrobeat", "easy", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, f.hitCount("/playlist/1440614715/tracks"))
	assert.Len(t, cache.data["blindtest:catalog:afrobeat:easy"], 3)
	assert.Equal(t, time.Minute, cache.ttl)
}

func TestCategoryLookups(t *testing.T) {
	assert.True(t, IsKnownCategory("k-pop"))
	assert.True(t, IsKnownCategory("jazz"))
	assert.False(t, IsKnownCategory("polka"))
	assert.Len(t, Categories(), 15)

	d, ok := LookupDifficulty("hard")
	require.True(t, ok)
	assert.Equal(t, 150, d.Offset)
	_, ok = LookupDifficulty("extreme")
	assert.False(t, ok)
}

func (f *fakeDeezer) query(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}
