// internal/game/errors.go
package game

import "errors"

// Errors returned by room operations. Callers with an acknowledgement channel
// (create/join) surface them to the client; fire-and-forget operations only log.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrNotHost        = errors.New("only the host can do that")
	ErrDuplicateGuess = errors.New("already guessed this round")
	ErrInvalidState   = errors.New("operation not valid in the current room state")
	ErrAlreadyInRoom  = errors.New("connection is already in a room")
	ErrNotInRoom      = errors.New("connection is not in this room")
	ErrSongMismatch   = errors.New("song does not match the current round")
	ErrEmptyGuess     = errors.New("guess is empty")
	ErrNoSongs        = errors.New("no songs to play")
	ErrCodeExhausted  = errors.New("could not generate a free room code")
)
