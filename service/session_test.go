package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/infrastruture/store"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRounds struct {
	saved []i.Round
	err   error
	sync.Mutex
}

func (f *fakeRounds) Save(_ context.Context, r *i.Round) error {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *r)
	return nil
}

func (f *fakeRounds) ByID(_ context.Context, id uuid.UUID) (*i.Round, error) {
	f.Lock()
	defer f.Unlock()
	for _, r := range f.saved {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, i.ErrRoundNotFound
}

func (f *fakeRounds) Recent(_ context.Context, limit int) ([]i.Round, error) {
	f.Lock()
	defer f.Unlock()
	out := make([]i.Round, 0, limit)
	for n := len(f.saved) - 1; n >= 0 && len(out) < limit; n-- {
		out = append(out, f.saved[n])
	}
	return out, nil
}

// startSession runs Start in the background and waits until the session is ready.
func startSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("session stopped before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("session never became ready")
	}
	return s
}

func waitFor(t *testing.T, l *Listener, kind UpdateKind) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-l.Updates():
			if u.Kind == kind {
				return u
			}
		case <-timeout:
			t.Fatalf("no %s update", kind)
			return Update{}
		}
	}
}

func TestNewSession(t *testing.T) {
	_, err := NewSession(Config{Width: 3, Height: 3})
	assert.ErrorIs(t, err, ErrMissingStore)

	_, err = NewSession(Config{Store: store.NewMemoryStore(), Width: 0, Height: 3})
	assert.ErrorIs(t, err, maze.ErrInvalidDimensions)

	s, err := NewSession(Config{Store: store.NewMemoryStore(), Width: 4, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, s.State())
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("Operations before ready are rejected", func(t *testing.T) {
		s, err := NewSession(Config{Store: store.NewMemoryStore(), Width: 3, Height: 3})
		require.NoError(t, err)

		_, err = s.Join(context.Background(), uuid.Nil)
		assert.ErrorIs(t, err, ErrNotReady)
		_, err = s.Move(context.Background(), uuid.New(), maze.East)
		assert.ErrorIs(t, err, ErrNotReady)
		sn, err := s.Snapshot()
		assert.ErrorIs(t, err, ErrNotReady)
		assert.Equal(t, Uninitialized, sn.State)

		select {
		case <-s.Ready():
			t.Fatal("ready closed before start")
		default:
		}
	})

	t.Run("Missing seed falls back to default", func(t *testing.T) {
		s := startSession(t, Config{Store: store.NewMemoryStore(), Width: 5, Height: 4})
		assert.Equal(t, Ready, s.State())

		sn, err := s.Snapshot()
		require.NoError(t, err)
		want, _ := maze.New(5, 4, maze.DefaultSeed)
		assert.Equal(t, maze.DefaultSeed, sn.Seed)
		assert.Equal(t, want.Grid, sn.Maze.Grid)
		assert.Empty(t, sn.Players)
	})

	t.Run("Stored seed and players are loaded", func(t *testing.T) {
		st := store.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, st.SetSeed(ctx, "loaded"))
		id := uuid.New()
		require.NoError(t, st.SetPlayer(ctx, id, maze.Position{Row: 1, Col: 1}))
		require.NoError(t, st.SetPlayer(ctx, uuid.New(), maze.Position{Row: 99, Col: 1}))

		s := startSession(t, Config{Store: st, Width: 3, Height: 3})
		sn, err := s.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, maze.Seed("loaded"), sn.Seed)
		assert.Equal(t, map[uuid.UUID]maze.Position{id: {Row: 1, Col: 1}}, sn.Players)
	})

	t.Run("Start twice fails", func(t *testing.T) {
		s := startSession(t, Config{Store: store.NewMemoryStore(), Width: 3, Height: 3})
		assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	})
}

func TestSessionMoves(t *testing.T) {
	ctx := context.Background()

	t.Run("Join places players on the start cell", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{Store: st, Width: 4, Height: 4})

		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		pos, err := s.Position(id)
		require.NoError(t, err)
		assert.Equal(t, maze.Position{}, pos)

		players, err := st.Players(ctx)
		require.NoError(t, err)
		assert.Equal(t, maze.Position{}, players[id])
	})

	t.Run("Walls block moves", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{Store: st, Width: 6, Height: 6})
		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		// North and West of the start cell are always outer walls.
		res, err := s.Move(ctx, id, maze.North)
		assert.ErrorIs(t, err, maze.ErrInvalidMove)
		assert.Equal(t, maze.Position{}, res.Position)
		_, err = s.Move(ctx, id, maze.West)
		assert.ErrorIs(t, err, maze.ErrInvalidMove)

		pos, err := s.Position(id)
		require.NoError(t, err)
		assert.Equal(t, maze.Position{}, pos)
	})

	t.Run("Open passages are followed", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{Store: st, Width: 6, Height: 6})
		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		sn, err := s.Snapshot()
		require.NoError(t, err)
		d := maze.East
		if !sn.Maze.CanMove(sn.Maze.Start(), d) {
			d = maze.South
		}

		res, err := s.Move(ctx, id, d)
		require.NoError(t, err)
		assert.False(t, res.Won)
		assert.Equal(t, sn.Maze.Start().Add(d), res.Position)

		players, err := st.Players(ctx)
		require.NoError(t, err)
		assert.Equal(t, res.Position, players[id])

		sn, err = s.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, 1, sn.Moves)
	})

	t.Run("Unknown player", func(t *testing.T) {
		s := startSession(t, Config{Store: store.NewMemoryStore(), Width: 3, Height: 3})
		_, err := s.Move(ctx, uuid.New(), maze.East)
		assert.ErrorIs(t, err, ErrUnknownPlayer)
		_, err = s.Position(uuid.New())
		assert.ErrorIs(t, err, ErrUnknownPlayer)
	})

	t.Run("Leave removes the player", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{Store: st, Width: 3, Height: 3})
		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		require.NoError(t, s.Leave(ctx, id))
		_, err = s.Position(id)
		assert.ErrorIs(t, err, ErrUnknownPlayer)
		players, err := st.Players(ctx)
		require.NoError(t, err)
		assert.NotContains(t, players, id)
	})
}

func TestSessionWin(t *testing.T) {
	ctx := context.Background()

	// A 3x1 maze is a corridor, so East, East reaches the goal.
	t.Run("Reaching the goal starts a new round", func(t *testing.T) {
		st := store.NewMemoryStore()
		require.NoError(t, st.SetSeed(ctx, "corridor"))
		rounds := &fakeRounds{}
		s := startSession(t, Config{
			Store:   st,
			Rounds:  rounds,
			Width:   3,
			Height:  1,
			NewSeed: func() maze.Seed { return "next-round" },
		})
		l := s.Listen()
		defer l.Close()

		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		res, err := s.Move(ctx, id, maze.East)
		require.NoError(t, err)
		assert.False(t, res.Won)

		res, err = s.Move(ctx, id, maze.East)
		require.NoError(t, err)
		assert.True(t, res.Won)
		assert.Equal(t, maze.Position{Row: 0, Col: 2}, res.Position)
		assert.Equal(t, maze.Seed("next-round"), res.NextSeed)
		require.NotNil(t, res.Round)
		assert.Equal(t, id, res.Round.WinnerID)
		assert.Equal(t, maze.Seed("corridor"), res.Round.Seed)
		assert.Equal(t, 2, res.Round.Moves)

		u := waitFor(t, l, UpdateSeed)
		assert.Equal(t, maze.Seed("next-round"), u.Seed)

		sn, err := s.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, maze.Seed("next-round"), sn.Seed)
		assert.Empty(t, sn.Players)
		assert.Zero(t, sn.Moves)

		seed, _, err := st.Seed(ctx)
		require.NoError(t, err)
		assert.Equal(t, maze.Seed("next-round"), seed)
		players, err := st.Players(ctx)
		require.NoError(t, err)
		assert.Empty(t, players)

		recent, err := s.Rounds(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, res.Round.ID, recent[0].ID)

		_, err = s.Move(ctx, id, maze.East)
		assert.ErrorIs(t, err, ErrUnknownPlayer)
	})

	t.Run("Round repository failures do not undo the win", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{
			Store:  st,
			Rounds: &fakeRounds{err: errors.New("disk full")},
			Width:  2,
			Height: 1,
		})
		id, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)
		res, err := s.Move(ctx, id, maze.East)
		require.NoError(t, err)
		assert.True(t, res.Won)
	})

	t.Run("Only one of two sessions wins a round", func(t *testing.T) {
		st := store.NewMemoryStore()
		require.NoError(t, st.SetSeed(ctx, "shared"))
		a := startSession(t, Config{Store: st, Width: 3, Height: 1})
		b := startSession(t, Config{Store: st, Width: 3, Height: 1})

		pa, err := a.Join(ctx, uuid.Nil)
		require.NoError(t, err)
		pb, err := b.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		_, err = a.Move(ctx, pa, maze.East)
		require.NoError(t, err)
		_, err = b.Move(ctx, pb, maze.East)
		require.NoError(t, err)

		res, err := a.Move(ctx, pa, maze.East)
		require.NoError(t, err)
		require.True(t, res.Won)

		res, err = b.Move(ctx, pb, maze.East)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownPlayer) || errors.Is(err, i.ErrRoundOver), err)
		assert.False(t, res.Won)
	})

	t.Run("Round records the winner's moves only", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := startSession(t, Config{Store: st, Width: 3, Height: 1})

		winner, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)
		other, err := s.Join(ctx, uuid.Nil)
		require.NoError(t, err)

		for _, d := range []maze.Direction{maze.East, maze.West, maze.East} {
			_, err = s.Move(ctx, other, d)
			require.NoError(t, err)
		}
		_, err = s.Move(ctx, winner, maze.East)
		require.NoError(t, err)

		sn, err := s.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, 4, sn.Moves)

		res, err := s.Move(ctx, winner, maze.East)
		require.NoError(t, err)
		require.True(t, res.Won)
		assert.Equal(t, 2, res.Round.Moves)
	})
}

// reseedingStore ends the round right before the first move is written, as
// another winner would.
type reseedingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (r *reseedingStore) MovePlayer(ctx context.Context, expected maze.Seed, id uuid.UUID, pos maze.Position) error {
	r.once.Do(func() {
		_, _ = r.ResetRound(ctx, expected, "new")
	})
	return r.MemoryStore.MovePlayer(ctx, expected, id, pos)
}

func TestSessionMoveRacesReseed(t *testing.T) {
	ctx := context.Background()
	st := &reseedingStore{MemoryStore: store.NewMemoryStore()}
	require.NoError(t, st.SetSeed(ctx, "old"))
	s := startSession(t, Config{Store: st, Width: 3, Height: 1})
	l := s.Listen()
	defer l.Close()

	id, err := s.Join(ctx, uuid.Nil)
	require.NoError(t, err)

	res, err := s.Move(ctx, id, maze.East)
	assert.ErrorIs(t, err, i.ErrRoundOver)
	assert.False(t, res.Won)
	assert.Equal(t, maze.Position{}, res.Position)

	players, err := st.Players(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)

	u := waitFor(t, l, UpdateSeed)
	assert.Equal(t, maze.Seed("new"), u.Seed)
	sn, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, maze.Seed("new"), sn.Seed)
	assert.Empty(t, sn.Players)

	// The next move is judged against the new round.
	_, err = s.Move(ctx, id, maze.East)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestSessionFollowsStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	s := startSession(t, Config{Store: st, Width: 5, Height: 5})
	l := s.Listen()
	defer l.Close()

	remote := uuid.New()
	require.NoError(t, st.SetPlayer(ctx, remote, maze.Position{Row: 2, Col: 3}))
	u := waitFor(t, l, UpdatePlayer)
	assert.Equal(t, remote, u.PlayerID)
	pos, err := s.Position(remote)
	require.NoError(t, err)
	assert.Equal(t, maze.Position{Row: 2, Col: 3}, pos)

	require.NoError(t, st.RemovePlayer(ctx, remote))
	waitFor(t, l, UpdatePlayerLeft)
	_, err = s.Position(remote)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	require.NoError(t, st.SetPlayer(ctx, remote, maze.Position{}))
	waitFor(t, l, UpdatePlayer)
	require.NoError(t, st.SetSeed(ctx, "remote-seed"))
	waitFor(t, l, UpdateSeed)

	sn, err := s.Snapshot()
	require.NoError(t, err)
	want, _ := maze.New(5, 5, "remote-seed")
	assert.Equal(t, want.Grid, sn.Maze.Grid)
	assert.Empty(t, sn.Players)
}

func TestSnapshotValidate(t *testing.T) {
	m, err := maze.New(3, 4, "v")
	require.NoError(t, err)
	sn := Snapshot{Maze: m}
	assert.NoError(t, sn.Validate(3, 4))
	assert.ErrorIs(t, sn.Validate(4, 3), ErrDimensionMismatch)
	assert.ErrorIs(t, Snapshot{}.Validate(3, 4), ErrDimensionMismatch)
}

func TestListener(t *testing.T) {
	t.Run("Full buffers drop the oldest update", func(t *testing.T) {
		h := newHub(2)
		l := h.add()
		for n := 0; n < 5; n++ {
			h.publish(Update{Kind: UpdatePlayer, Position: maze.Position{Row: n}})
		}
		first := <-l.Updates()
		second := <-l.Updates()
		assert.Equal(t, 3, first.Position.Row)
		assert.Equal(t, 4, second.Position.Row)
	})

	t.Run("Closed listeners stop receiving", func(t *testing.T) {
		h := newHub(4)
		l := h.add()
		assert.Equal(t, 1, h.count())
		l.Close()
		l.Close()
		assert.Equal(t, 0, h.count())

		h.publish(Update{Kind: UpdateReady})
		assert.Empty(t, l.Updates())
		select {
		case <-l.Done():
		default:
			t.Fatal("done not closed")
		}
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "unknown", State(9).String())
}
