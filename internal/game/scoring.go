// internal/game/scoring.go
package game

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/blindtest/internal/match"
	"github.com/jason-s-yu/blindtest/internal/models"
)

// GameMode selects what a guess is compared against.
type GameMode string

const (
	ModeSong   GameMode = "song"
	ModeArtist GameMode = "artist"
	ModeBoth   GameMode = "both"
)

const (
	fullPoints = 10
	halfPoints = 5
)

// ParseGameMode validates a client supplied mode. An empty mode means ModeBoth.
func ParseGameMode(s string) (GameMode, error) {
	switch GameMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBoth:
		return ModeBoth, nil
	case ModeSong:
		return ModeSong, nil
	case ModeArtist:
		return ModeArtist, nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// ScoreResult is the verdict on a single guess.
type ScoreResult struct {
	SongCorrect   bool `json:"correctSong"`
	ArtistCorrect bool `json:"correctArtist"`
	Points        int  `json:"points"`
}

// Score judges guess against song under mode. It is pure and has no side effects.
func Score(guess string, song models.Song, mode GameMode) ScoreResult {
	g := match.Normalize(guess)
	if g == "" {
		return ScoreResult{}
	}
	title := match.Normalize(song.Title)
	artist := match.Normalize(song.Artist.Name)

	var res ScoreResult
	switch mode {
	case ModeSong:
		if matches(g, title) {
			res.SongCorrect = true
			res.Points = fullPoints
		}
	case ModeArtist:
		if matches(g, artist) {
			res.ArtistCorrect = true
			res.Points = fullPoints
		}
	case ModeBoth:
		if matches(g, title) {
			res.SongCorrect = true
			res.Points += halfPoints
		}
		if matches(g, artist) {
			res.ArtistCorrect = true
			res.Points += halfPoints
		}
	}
	return res
}

// typoThreshold is the number of edits tolerated against target.
func typoThreshold(target string) int {
	if len(target) <= 6 {
		return 2
	}
	return 3
}

// matches reports whether the normalized guess hits the normalized target, either
// within the typo threshold or by containing it. An empty target never matches.
func matches(guess, target string) bool {
	if target == "" {
		return false
	}
	if strings.Contains(guess, target) {
		return true
	}
	return match.Distance(guess, target) <= typoThreshold(target)
}
