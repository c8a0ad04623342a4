package i

import (
	"context"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/google/uuid"
)

// StoreEventKind identifies what changed in the shared store.
type StoreEventKind string

const (
	SeedChanged   StoreEventKind = "seed_changed"
	PlayerChanged StoreEventKind = "player_changed"
	PlayerRemoved StoreEventKind = "player_removed"
)

// StoreEvent is a change notification delivered by GameStore.Subscribe.
type StoreEvent struct {
	Kind     StoreEventKind
	Seed     maze.Seed     // set for SeedChanged
	PlayerID uuid.UUID     // set for player events
	Position maze.Position // set for PlayerChanged
}

// GameStore is the shared real-time data store every session mirrors.
type GameStore interface {
	// Seed returns the current map seed. ok is false when no seed was ever set.
	Seed(ctx context.Context) (seed maze.Seed, ok bool, err error)

	// SetSeed replaces the map seed and notifies subscribers.
	SetSeed(ctx context.Context, seed maze.Seed) error

	// ResetRound atomically replaces the seed with next and removes every
	// player, but only while the current seed is still expected (or unset).
	// It returns false when the seed had already moved on.
	ResetRound(ctx context.Context, expected, next maze.Seed) (bool, error)

	// SetPlayer writes a player's position and notifies subscribers.
	SetPlayer(ctx context.Context, id uuid.UUID, pos maze.Position) error

	// MovePlayer writes a player's position like SetPlayer, but only while
	// the current seed is still expected (or unset). Otherwise nothing is
	// written and ErrRoundOver is returned.
	MovePlayer(ctx context.Context, expected maze.Seed, id uuid.UUID, pos maze.Position) error

	// Players returns every player currently in the store.
	Players(ctx context.Context) (map[uuid.UUID]maze.Position, error)

	// RemovePlayer deletes a player and notifies subscribers.
	RemovePlayer(ctx context.Context, id uuid.UUID) error

	// Subscribe delivers change events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan StoreEvent, error)
}
