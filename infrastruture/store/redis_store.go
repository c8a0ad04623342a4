package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key when no prefix is configured.
const DefaultPrefix = "mazesync"

// RedisStore keeps the shared game state in Redis: the seed under
// <prefix>:mapData:seed, player positions in the hash <prefix>:players and
// change notifications on the pub/sub channel <prefix>:events.
type RedisStore struct {
	client *redis.Client
	locker *redsync.Redsync
	prefix string
	logger i.Logger
}

// NewRedisStore initializes a RedisStore on top of an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger i.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	pool := goredis.NewPool(client)
	return &RedisStore{
		client: client,
		locker: redsync.New(pool),
		prefix: prefix,
		logger: logger,
	}, nil
}

func (rs *RedisStore) seedKey() string    { return rs.prefix + ":mapData:seed" }
func (rs *RedisStore) playersKey() string { return rs.prefix + ":players" }
func (rs *RedisStore) eventsKey() string  { return rs.prefix + ":events" }
func (rs *RedisStore) lockKey() string    { return rs.prefix + ":reseed_lock" }

// Seed returns the current seed.
func (rs *RedisStore) Seed(ctx context.Context) (maze.Seed, bool, error) {
	val, err := rs.client.Get(ctx, rs.seedKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading seed: %w", err)
	}
	return maze.Seed(val), true, nil
}

// SetSeed replaces the seed and publishes the change.
func (rs *RedisStore) SetSeed(ctx context.Context, seed maze.Seed) error {
	if err := rs.client.Set(ctx, rs.seedKey(), string(seed), 0).Err(); err != nil {
		return fmt.Errorf("writing seed: %w", err)
	}
	return rs.publish(ctx, i.StoreEvent{Kind: i.SeedChanged, Seed: seed})
}

// ResetRound swaps the seed and clears all players while holding the reseed
// lock, so of two concurrent winners only the first succeeds. The writes and
// the notification share one transaction, so a move published before the
// reset can never be delivered after it.
func (rs *RedisStore) ResetRound(ctx context.Context, expected, next maze.Seed) (bool, error) {
	mutex := rs.locker.NewMutex(rs.lockKey())
	if err := mutex.LockContext(ctx); err != nil {
		return false, fmt.Errorf("acquiring reseed lock: %w", err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	current, ok, err := rs.Seed(ctx)
	if err != nil {
		return false, err
	}
	if ok && current != expected {
		return false, nil
	}

	ev, err := encodeEvent(i.StoreEvent{Kind: i.SeedChanged, Seed: next})
	if err != nil {
		return false, err
	}
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.seedKey(), string(next), 0)
		pipe.Del(ctx, rs.playersKey())
		pipe.Publish(ctx, rs.eventsKey(), ev)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("resetting round: %w", err)
	}
	return true, nil
}

// SetPlayer writes a player position and publishes the change.
func (rs *RedisStore) SetPlayer(ctx context.Context, id uuid.UUID, pos maze.Position) error {
	data, ev, err := encodePlayerChange(id, pos)
	if err != nil {
		return err
	}
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rs.playersKey(), id.String(), data)
		pipe.Publish(ctx, rs.eventsKey(), ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing player %s: %w", id, err)
	}
	return nil
}

// MovePlayer writes a player position under a WATCH on the seed key. A
// reseed between the check and the write aborts the transaction.
func (rs *RedisStore) MovePlayer(ctx context.Context, expected maze.Seed, id uuid.UUID, pos maze.Position) error {
	data, ev, err := encodePlayerChange(id, pos)
	if err != nil {
		return err
	}

	err = rs.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rs.seedKey()).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("reading seed: %w", err)
		case maze.Seed(current) != expected:
			return fmt.Errorf("%w: seed is %q, not %q", i.ErrRoundOver, current, expected)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rs.playersKey(), id.String(), data)
			pipe.Publish(ctx, rs.eventsKey(), ev)
			return nil
		})
		return err
	}, rs.seedKey())

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: seed changed while moving %s", i.ErrRoundOver, id)
	case errors.Is(err, i.ErrRoundOver):
		return err
	case err != nil:
		return fmt.Errorf("moving player %s: %w", id, err)
	}
	return nil
}

// Players returns all player positions. Malformed entries are logged and skipped.
func (rs *RedisStore) Players(ctx context.Context) (map[uuid.UUID]maze.Position, error) {
	raw, err := rs.client.HGetAll(ctx, rs.playersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading players: %w", err)
	}

	players := make(map[uuid.UUID]maze.Position, len(raw))
	for field, val := range raw {
		id, err := uuid.Parse(field)
		if err != nil {
			rs.warn(fmt.Sprintf("%v: id %q", ErrMalformedPlayer, field))
			continue
		}
		pos, err := decodePosition([]byte(val))
		if err != nil {
			rs.warn(fmt.Sprintf("%v: %s: %v", ErrMalformedPlayer, field, err))
			continue
		}
		players[id] = pos
	}
	return players, nil
}

// RemovePlayer deletes a player and publishes the change if it existed.
func (rs *RedisStore) RemovePlayer(ctx context.Context, id uuid.UUID) error {
	n, err := rs.client.HDel(ctx, rs.playersKey(), id.String()).Result()
	if err != nil {
		return fmt.Errorf("removing player %s: %w", id, err)
	}
	if n == 0 {
		return nil
	}
	return rs.publish(ctx, i.StoreEvent{Kind: i.PlayerRemoved, PlayerID: id})
}

func encodePlayerChange(id uuid.UUID, pos maze.Position) (data, ev []byte, err error) {
	if data, err = encodePosition(pos); err != nil {
		return nil, nil, err
	}
	if ev, err = encodeEvent(i.StoreEvent{Kind: i.PlayerChanged, PlayerID: id, Position: pos}); err != nil {
		return nil, nil, err
	}
	return data, ev, nil
}

// Subscribe listens on the events channel until ctx is done.
func (rs *RedisStore) Subscribe(ctx context.Context) (<-chan i.StoreEvent, error) {
	ps := rs.client.Subscribe(ctx, rs.eventsKey())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", rs.eventsKey(), err)
	}

	out := make(chan i.StoreEvent, 64)
	go func() {
		defer close(out)
		defer func() {
			_ = ps.Close()
		}()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := decodeEvent([]byte(msg.Payload))
				if err != nil {
					rs.warn(fmt.Sprintf("dropping event: %v", err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (rs *RedisStore) publish(ctx context.Context, ev i.StoreEvent) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := rs.client.Publish(ctx, rs.eventsKey(), data).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Kind, err)
	}
	return nil
}

func (rs *RedisStore) warn(msg string) {
	if rs.logger != nil {
		rs.logger.Warning(msg)
	}
}
