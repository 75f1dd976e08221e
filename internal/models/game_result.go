package models

import "time"

// GameResult is the final standing of a finished game, written to the database
// once both players acknowledge the last round.
type GameResult struct {
	RoomID      string    `json:"room_id"`
	Category    string    `json:"category"`
	Difficulty  string    `json:"difficulty"`
	TotalRounds int       `json:"total_rounds"`
	Players     []Player  `json:"players"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Winner returns the id of the highest scoring player, or "" on a tie.
func (r GameResult) Winner() string {
	best, winner, tied := -1, "", false
	for _, p := range r.Players {
		switch {
		case p.Score > best:
			best, winner, tied = p.Score, p.ID, false
		case p.Score == best:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return winner
}
