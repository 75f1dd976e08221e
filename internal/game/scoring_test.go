package game

import (
	"testing"

	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hello() models.Song {
	return models.Song{ID: 1, Title: "Hello", Artist: models.Artist{Name: "Adele"}}
}

func TestScoreBothModeTypo(t *testing.T) {
	res := Score("helo", hello(), ModeBoth)
	assert.True(t, res.SongCorrect)
	assert.False(t, res.ArtistCorrect)
	assert.Equal(t, 5, res.Points)
}

func TestScoreBothModeBothComponents(t *testing.T) {
	res := Score("Hello - Adele", hello(), ModeBoth)
	assert.True(t, res.SongCorrect)
	assert.True(t, res.ArtistCorrect)
	assert.Equal(t, 10, res.Points)
}

func TestScoreEmptyGuessNeverScores(t *testing.T) {
	for _, mode := range []GameMode{ModeSong, ModeArtist, ModeBoth} {
		assert.Equal(t, ScoreResult{}, Score("", hello(), mode), "mode %s", mode)
		assert.Equal(t, ScoreResult{}, Score("   ", hello(), mode), "mode %s", mode)
		assert.Equal(t, ScoreResult{}, Score("!!!", hello(), mode), "mode %s", mode)
	}
}

func TestScoreSongMode(t *testing.T) {
	song := models.Song{Title: "Bohemian Rhapsody", Artist: models.Artist{Name: "Queen"}}

	res := Score("bohemian rapsody", song, ModeSong)
	assert.Equal(t, ScoreResult{SongCorrect: true, Points: 10}, res)

	res = Score("i think it is bohemian rhapsody by queen", song, ModeSong)
	assert.Equal(t, 10, res.Points, "guess containing the title scores")

	res = Score("queen", song, ModeSong)
	assert.Equal(t, 0, res.Points, "artist does not count in song mode")
}

func TestScoreArtistMode(t *testing.T) {
	song := models.Song{Title: "Halo", Artist: models.Artist{Name: "Beyoncé"}}

	assert.Equal(t, ScoreResult{ArtistCorrect: true, Points: 10}, Score("beyonce", song, ModeArtist))
	assert.Equal(t, 10, Score("BEYONSE", song, ModeArtist).Points)
	assert.Equal(t, 0, Score("halo", song, ModeArtist).Points)
}

func TestScoreThreshold(t *testing.T) {
	short := models.Song{Title: "Toxic", Artist: models.Artist{Name: "Britney Spears"}}
	// "toxic" is 5 chars: 2 edits allowed
	assert.Equal(t, 10, Score("toxc", short, ModeSong).Points)
	assert.Equal(t, 10, Score("tixoc", short, ModeSong).Points)
	assert.Equal(t, 0, Score("txx", short, ModeSong).Points)

	long := models.Song{Title: "Yesterday", Artist: models.Artist{Name: "The Beatles"}}
	// "yesterday" is 9 chars: 3 edits allowed
	assert.Equal(t, 10, Score("yestrdy", long, ModeSong).Points)
	assert.Equal(t, 0, Score("yster", long, ModeSong).Points)
}

func TestScoreEmptyTargetNeverMatches(t *testing.T) {
	song := models.Song{Title: "봄날", Artist: models.Artist{Name: "방탄소년단"}}
	assert.Equal(t, 0, Score("ab", song, ModeBoth).Points)
	assert.Equal(t, 0, Score("x", song, ModeArtist).Points)
}

func TestParseGameMode(t *testing.T) {
	m, err := ParseGameMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, m)

	m, err = ParseGameMode(" Song ")
	require.NoError(t, err)
	assert.Equal(t, ModeSong, m)

	_, err = ParseGameMode("lyrics")
	assert.Error(t, err)
}
