package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
)

// MemoryStore is a process-local GameStore. It behaves like RedisStore and is
// used for single-node deployments and tests.
type MemoryStore struct {
	seed    maze.Seed
	hasSeed bool
	players map[uuid.UUID]maze.Position
	subs    map[*subscriber]struct{}
	sync.RWMutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[uuid.UUID]maze.Position),
		subs:    make(map[*subscriber]struct{}),
	}
}

// Seed returns the current seed.
func (s *MemoryStore) Seed(ctx context.Context) (maze.Seed, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.RLock()
	defer s.RUnlock()
	return s.seed, s.hasSeed, nil
}

// SetSeed replaces the seed.
func (s *MemoryStore) SetSeed(ctx context.Context, seed maze.Seed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.seed, s.hasSeed = seed, true
	s.publish(i.StoreEvent{Kind: i.SeedChanged, Seed: seed})
	return nil
}

// ResetRound swaps the seed and clears all players if the seed is still expected.
func (s *MemoryStore) ResetRound(ctx context.Context, expected, next maze.Seed) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.Lock()
	defer s.Unlock()
	if s.hasSeed && s.seed != expected {
		return false, nil
	}
	s.seed, s.hasSeed = next, true
	clear(s.players)
	s.publish(i.StoreEvent{Kind: i.SeedChanged, Seed: next})
	return true, nil
}

// SetPlayer stores a player position.
func (s *MemoryStore) SetPlayer(ctx context.Context, id uuid.UUID, pos maze.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.players[id] = pos
	s.publish(i.StoreEvent{Kind: i.PlayerChanged, PlayerID: id, Position: pos})
	return nil
}

// MovePlayer stores a player position if the round is still current.
func (s *MemoryStore) MovePlayer(ctx context.Context, expected maze.Seed, id uuid.UUID, pos maze.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if s.hasSeed && s.seed != expected {
		return fmt.Errorf("%w: seed is %q, not %q", i.ErrRoundOver, s.seed, expected)
	}
	s.players[id] = pos
	s.publish(i.StoreEvent{Kind: i.PlayerChanged, PlayerID: id, Position: pos})
	return nil
}

// Players returns a copy of all player positions.
func (s *MemoryStore) Players(ctx context.Context) (map[uuid.UUID]maze.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.RLock()
	defer s.RUnlock()
	out := make(map[uuid.UUID]maze.Position, len(s.players))
	for id, pos := range s.players {
		out[id] = pos
	}
	return out, nil
}

// RemovePlayer deletes a player. Removing an absent player is not an error.
func (s *MemoryStore) RemovePlayer(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if _, ok := s.players[id]; !ok {
		return nil
	}
	delete(s.players, id)
	s.publish(i.StoreEvent{Kind: i.PlayerRemoved, PlayerID: id})
	return nil
}

// Subscribe registers a subscriber that receives every later change in order.
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan i.StoreEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := newSubscriber()

	s.Lock()
	s.subs[sub] = struct{}{}
	s.Unlock()

	go func() {
		sub.run(ctx)
		s.Lock()
		delete(s.subs, sub)
		s.Unlock()
	}()
	return sub.out, nil
}

// publish must be called with the write lock held.
func (s *MemoryStore) publish(ev i.StoreEvent) {
	for sub := range s.subs {
		sub.push(ev)
	}
}

// subscriber queues events without bounds so a publisher never waits for a
// slow reader; ordering is preserved.
type subscriber struct {
	mu     sync.Mutex
	queue  []i.StoreEvent
	signal chan struct{}
	out    chan i.StoreEvent
}

func newSubscriber() *subscriber {
	return &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan i.StoreEvent),
	}
}

func (sub *subscriber) push(ev i.StoreEvent) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscriber) run(ctx context.Context) {
	defer close(sub.out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.signal:
		}

		sub.mu.Lock()
		batch := sub.queue
		sub.queue = nil
		sub.mu.Unlock()

		for _, ev := range batch {
			select {
			case sub.out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
