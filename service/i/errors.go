package i

import "errors"

var (
	// ErrRoundNotFound is returned by RoundRepo lookups that match nothing.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundOver is returned by GameStore.MovePlayer when the round the
	// move was made in has already ended.
	ErrRoundOver = errors.New("round is over")
)
