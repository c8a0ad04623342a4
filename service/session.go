package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Session errors.
var (
	ErrAlreadyStarted     = errors.New("session already started")
	ErrNotReady           = errors.New("session is not ready")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrDimensionMismatch  = errors.New("maze dimensions differ from the configured ones")
	ErrStoreClosed        = errors.New("store subscription closed")
	ErrMissingStore       = errors.New("game store is required")
	ErrInconsistentPlayer = errors.New("player position is outside the maze")
)

// Config configures a Session.
type Config struct {
	Store          i.GameStore
	Rounds         i.RoundRepo // optional; finished rounds are not recorded without it
	Width          int
	Height         int
	Logger         i.Logger
	Tracer         trace.Tracer     // optional
	NewSeed        func() maze.Seed // optional; defaults to a random UUID
	Now            func() time.Time // optional
	ListenerBuffer int              // optional
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	State        State
	Seed         maze.Seed
	Maze         *maze.Maze
	Players      map[uuid.UUID]maze.Position
	RoundStarted time.Time
	Moves        int // moves accepted by this session in the current round
}

// Validate reports ErrDimensionMismatch when the snapshot's maze was not built
// for the given dimensions.
func (sn Snapshot) Validate(width, height int) error {
	if sn.Maze == nil || sn.Maze.Width != width || sn.Maze.Height != height {
		return ErrDimensionMismatch
	}
	return nil
}

// MoveResult describes the outcome of an accepted move.
type MoveResult struct {
	Position maze.Position
	Won      bool
	Round    *i.Round  // set when Won
	NextSeed maze.Seed // set when Won
}

// Session mirrors the shared store for one process. It owns the current
// maze, the known players and the lifecycle state; store changes are applied
// by a single event loop started with Start.
type Session struct {
	store   i.GameStore
	rounds  i.RoundRepo
	width   int
	height  int
	logger  i.Logger
	tracer  trace.Tracer
	newSeed func() maze.Seed
	now     func() time.Time
	hub     *hub

	state        State
	seed         maze.Seed
	maze         *maze.Maze
	players      map[uuid.UUID]maze.Position
	roundStarted time.Time
	moves        int
	playerMoves  map[uuid.UUID]int
	ready        chan struct{}
	sync.RWMutex
}

// NewSession validates the configuration and returns an uninitialized session.
func NewSession(c Config) (*Session, error) {
	if c.Store == nil {
		return nil, ErrMissingStore
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", maze.ErrInvalidDimensions, c.Width, c.Height)
	}

	s := &Session{
		store:       c.Store,
		rounds:      c.Rounds,
		width:       c.Width,
		height:      c.Height,
		logger:      c.Logger,
		tracer:      c.Tracer,
		newSeed:     c.NewSeed,
		now:         c.Now,
		hub:         newHub(c.ListenerBuffer),
		players:     make(map[uuid.UUID]maze.Position),
		playerMoves: make(map[uuid.UUID]int),
		ready:       make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("session")
	}
	if s.newSeed == nil {
		s.newSeed = func() maze.Seed { return maze.Seed(uuid.NewString()) }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start loads the current seed and players, generates the maze, marks the
// session Ready and then applies store changes until ctx is done. It blocks
// for the lifetime of the session and returns nil on cancellation.
func (s *Session) Start(ctx context.Context) error {
	s.Lock()
	if s.state != Uninitialized {
		s.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Loading
	s.Unlock()

	events, err := s.load(ctx)
	if err != nil {
		s.Lock()
		s.state = Uninitialized
		s.Unlock()
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error(ErrStoreClosed.Error())
				return ErrStoreClosed
			}
			s.apply(ev)
		}
	}
}

// load subscribes before reading so no change between the read and the
// subscription is lost.
func (s *Session) load(ctx context.Context) (<-chan i.StoreEvent, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	events, err := s.store.Subscribe(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("subscribing to store: %w", err))
	}

	seed, ok, err := s.store.Seed(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("fetching seed: %w", err))
	}
	if !ok {
		seed = maze.DefaultSeed
		s.logger.Warning(fmt.Sprintf("no seed in store, using default seed %q", seed))
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("fetching players: %w", err))
	}

	m, err := s.generate(ctx, seed)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.Lock()
	s.seed = seed
	s.maze = m
	s.players = make(map[uuid.UUID]maze.Position, len(players))
	for id, pos := range players {
		if !m.InBound(pos) {
			s.logger.Warning(fmt.Sprintf("%v: %s at %s", ErrInconsistentPlayer, id, pos))
			continue
		}
		s.players[id] = pos
	}
	s.roundStarted = s.now()
	s.moves = 0
	clear(s.playerMoves)
	s.state = Ready
	close(s.ready)
	s.Unlock()

	span.SetAttributes(attribute.String("seed", string(seed)), attribute.Int("players", len(players)))
	s.logger.Info(fmt.Sprintf("session ready: seed %q, %dx%d, %d players", seed, s.width, s.height, len(players)))
	s.hub.publish(Update{Kind: UpdateReady, Seed: seed})
	return events, nil
}

func (s *Session) generate(ctx context.Context, seed maze.Seed) (*maze.Maze, error) {
	_, span := s.tracer.Start(ctx, "maze.New", trace.WithAttributes(
		attribute.String("seed", string(seed)),
		attribute.Int("width", s.width),
		attribute.Int("height", s.height),
	))
	defer span.End()

	m, err := maze.New(s.width, s.height, seed)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("generating maze: %w", err))
	}
	return m, nil
}

// apply folds one store change into the local state.
func (s *Session) apply(ev i.StoreEvent) {
	switch ev.Kind {
	case i.SeedChanged:
		seed := ev.Seed.OrDefault()
		m, err := s.generate(context.Background(), seed)
		if err != nil {
			s.logger.Error(err.Error())
			return
		}
		s.resetRound(seed, m)
		s.logger.Info(fmt.Sprintf("new round: seed %q", seed))
		s.hub.publish(Update{Kind: UpdateSeed, Seed: seed})

	case i.PlayerChanged:
		s.Lock()
		if !s.maze.InBound(ev.Position) {
			s.Unlock()
			s.logger.Warning(fmt.Sprintf("%v: %s at %s", ErrInconsistentPlayer, ev.PlayerID, ev.Position))
			return
		}
		s.players[ev.PlayerID] = ev.Position
		s.Unlock()
		s.hub.publish(Update{Kind: UpdatePlayer, PlayerID: ev.PlayerID, Position: ev.Position})

	case i.PlayerRemoved:
		s.Lock()
		delete(s.players, ev.PlayerID)
		delete(s.playerMoves, ev.PlayerID)
		s.Unlock()
		s.hub.publish(Update{Kind: UpdatePlayerLeft, PlayerID: ev.PlayerID})

	default:
		s.logger.Warning(fmt.Sprintf("ignoring store event %q", ev.Kind))
	}
}

func (s *Session) resetRound(seed maze.Seed, m *maze.Maze) {
	s.Lock()
	defer s.Unlock()
	s.seed = seed
	s.maze = m
	clear(s.players)
	clear(s.playerMoves)
	s.moves = 0
	s.roundStarted = s.now()
}

// Join places a player on the start cell and restarts its move count. A nil
// id asks for a new player.
func (s *Session) Join(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.RLock()
	if s.state != Ready {
		s.RUnlock()
		return uuid.Nil, ErrNotReady
	}
	start := s.maze.Start()
	s.RUnlock()

	if id == uuid.Nil {
		id = uuid.New()
	}
	if err := s.store.SetPlayer(ctx, id, start); err != nil {
		s.logger.Error(fmt.Sprintf("joining %s: %v", id, err))
		return uuid.Nil, err
	}

	s.Lock()
	s.players[id] = start
	delete(s.playerMoves, id)
	s.Unlock()

	s.logger.Info(fmt.Sprintf("player %s joined", id))
	return id, nil
}

// Move steps a player one cell in direction d. Reaching the goal ends the
// round: the store is reseeded, every player is removed and the round is
// recorded. The local maze switches when the resulting seed change arrives
// from the store, after the winning move itself. A move made in a round that
// has already ended fails with i.ErrRoundOver and is not stored.
func (s *Session) Move(ctx context.Context, id uuid.UUID, d maze.Direction) (MoveResult, error) {
	ctx, span := s.tracer.Start(ctx, "session.Move", trace.WithAttributes(
		attribute.String("player", id.String()),
		attribute.String("direction", d.String()),
	))
	defer span.End()

	s.RLock()
	if s.state != Ready {
		s.RUnlock()
		return MoveResult{}, ErrNotReady
	}
	pos, ok := s.players[id]
	m, seed := s.maze, s.seed
	s.RUnlock()
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}

	next, err := m.Step(pos, d)
	if err != nil {
		return MoveResult{Position: pos}, err
	}

	if err := s.store.MovePlayer(ctx, seed, id, next); err != nil {
		if errors.Is(err, i.ErrRoundOver) {
			return MoveResult{Position: pos}, err
		}
		return MoveResult{Position: pos}, s.fail(span, fmt.Errorf("storing move: %w", err))
	}

	s.Lock()
	if s.seed != seed {
		// The round ended after the move was stored; the reset removed it.
		current := s.seed
		s.Unlock()
		return MoveResult{Position: pos}, fmt.Errorf("%w: seed changed to %q", i.ErrRoundOver, current)
	}
	s.players[id] = next
	s.moves++
	s.playerMoves[id]++
	moves, started := s.playerMoves[id], s.roundStarted
	s.Unlock()

	result := MoveResult{Position: next}
	if next != m.Goal() || !m.Reachable(m.Start(), next) {
		return result, nil
	}

	round, nextSeed, err := s.finishRound(ctx, id, m, seed, moves, started)
	if err != nil {
		return result, s.fail(span, err)
	}
	if round == nil {
		return result, nil
	}

	result.Won = true
	result.Round = round
	result.NextSeed = nextSeed
	span.SetAttributes(attribute.Bool("won", true))
	return result, nil
}

// finishRound reseeds the store. It returns a nil round when another winner
// reseeded first.
func (s *Session) finishRound(ctx context.Context, winner uuid.UUID, m *maze.Maze, seed maze.Seed, moves int, started time.Time) (*i.Round, maze.Seed, error) {
	ctx, span := s.tracer.Start(ctx, "session.finishRound")
	defer span.End()

	next := s.newSeed()
	swapped, err := s.store.ResetRound(ctx, seed, next)
	if err != nil {
		return nil, "", fmt.Errorf("resetting round: %w", err)
	}
	if !swapped {
		s.logger.Info(fmt.Sprintf("player %s reached the goal after the round was over", winner))
		return nil, "", nil
	}

	round := &i.Round{
		ID:         uuid.New(),
		Seed:       seed,
		Width:      m.Width,
		Height:     m.Height,
		WinnerID:   winner,
		Moves:      moves,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	s.logger.Info(fmt.Sprintf("player %s won round %q in %d moves", winner, seed, moves))

	if s.rounds != nil {
		if err := s.rounds.Save(ctx, round); err != nil {
			s.logger.Error(fmt.Sprintf("recording round %s: %v", round.ID, err))
		}
	}
	return round, next, nil
}

// Leave removes a player from the game.
func (s *Session) Leave(ctx context.Context, id uuid.UUID) error {
	if err := s.store.RemovePlayer(ctx, id); err != nil {
		s.logger.Error(fmt.Sprintf("removing %s: %v", id, err))
		return err
	}
	s.Lock()
	delete(s.players, id)
	delete(s.playerMoves, id)
	s.Unlock()
	s.logger.Info(fmt.Sprintf("player %s left", id))
	return nil
}

// Snapshot copies the current state. It fails with ErrNotReady before the
// first maze is generated.
func (s *Session) Snapshot() (Snapshot, error) {
	s.RLock()
	defer s.RUnlock()
	if s.state != Ready {
		return Snapshot{State: s.state}, ErrNotReady
	}

	players := make(map[uuid.UUID]maze.Position, len(s.players))
	for id, pos := range s.players {
		players[id] = pos
	}
	sn := Snapshot{
		State:        s.state,
		Seed:         s.seed,
		Maze:         s.maze,
		Players:      players,
		RoundStarted: s.roundStarted,
		Moves:        s.moves,
	}
	return sn, sn.Validate(s.width, s.height)
}

// Position returns a player's current cell.
func (s *Session) Position(id uuid.UUID) (maze.Position, error) {
	s.RLock()
	defer s.RUnlock()
	pos, ok := s.players[id]
	if !ok {
		return maze.Position{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	return pos, nil
}

// Rounds returns the most recent finished rounds, or nothing when no round
// repository is configured.
func (s *Session) Rounds(ctx context.Context, limit int) ([]i.Round, error) {
	if s.rounds == nil {
		return []i.Round{}, nil
	}
	return s.rounds.Recent(ctx, limit)
}

// Listen attaches a listener for state updates. Callers must Close it.
func (s *Session) Listen() *Listener {
	return s.hub.add()
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.RLock()
	defer s.RUnlock()
	return s.state
}

// Ready closes once the first maze is available.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type nopLogger struct{}

func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}
