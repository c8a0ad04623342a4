package i

import (
	"context"
	"time"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/google/uuid"
)

// Round is one finished maze. Moves counts the winner's moves since it last
// joined, as seen by the session that recorded the win.
type Round struct {
	ID         uuid.UUID `bson:"_id" json:"id"`
	Seed       maze.Seed `bson:"seed" json:"seed"`
	Width      int       `bson:"width" json:"width"`
	Height     int       `bson:"height" json:"height"`
	WinnerID   uuid.UUID `bson:"winnerId" json:"winnerId"`
	Moves      int       `bson:"moves" json:"moves"`
	StartedAt  time.Time `bson:"startedAt" json:"startedAt"`
	FinishedAt time.Time `bson:"finishedAt" json:"finishedAt"`
}

// Duration is the time the round took to solve.
func (r Round) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RoundRepo defines the interface for round history persistence.
type RoundRepo interface {
	// Save inserts or updates a round.
	Save(ctx context.Context, round *Round) error

	// ByID retrieves a round by its ID.
	// Returns ErrRoundNotFound wrapped when no such round exists.
	ByID(ctx context.Context, id uuid.UUID) (*Round, error)

	// Recent returns up to limit rounds, newest first.
	Recent(ctx context.Context, limit int) ([]Round, error)
}
