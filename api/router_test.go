package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gameapi "github.com/beka-birhanu/mazesync/api/game"
	api_i "github.com/beka-birhanu/mazesync/api/i"
	"github.com/beka-birhanu/mazesync/api/identity"
	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/infrastruture/store"
	"github.com/beka-birhanu/mazesync/infrastruture/token"
	"github.com/beka-birhanu/mazesync/service"
	svc_i "github.com/beka-birhanu/mazesync/service/i"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	session *service.Session
}

func newTestServer(t *testing.T, width, height int, start bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	session, err := service.NewSession(service.Config{
		Store:  store.NewMemoryStore(),
		Width:  width,
		Height: height,
	})
	require.NoError(t, err)

	if start {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = session.Start(ctx)
			close(done)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		select {
		case <-session.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("session never became ready")
		}
	}

	tokenizer := token.NewJwtService("test-secret", "mazesync-test")
	router := NewRouter(Config{
		BaseURL: "/api",
		Controllers: []api_i.Controller{
			gameapi.NewGameController(session),
			identity.NewPlayerController(session, tokenizer, time.Hour),
		},
		AuthorizationMiddleware: identity.Authoriz(tokenizer),
	})
	return &testServer{handler: router.Handler(), session: session}
}

func (ts *testServer) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) join(t *testing.T) identity.JoinResponse {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/v1/players", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res identity.JoinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestRouterNotReady(t *testing.T) {
	ts := newTestServer(t, 3, 3, false)

	for _, path := range []string{"/api/v1/health", "/api/v1/maze", "/api/v1/players", "/api/v1/maze/ascii"} {
		w := ts.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w := ts.do(http.MethodPost, "/api/v1/players", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouterPublic(t *testing.T) {
	ts := newTestServer(t, 4, 3, true)

	t.Run("Health", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/health", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res gameapi.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "ready", res.State)
		assert.Equal(t, string(maze.DefaultSeed), res.Seed)
	})

	t.Run("Maze", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/maze", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res gameapi.MazeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 4, res.Width)
		assert.Equal(t, 3, res.Height)
		assert.Equal(t, gameapi.PositionDTO{Row: 2, Col: 3}, res.Goal)
		require.Len(t, res.Cells, 3)
		assert.Len(t, res.Cells[0], 4)

		want, err := maze.New(4, 3, maze.DefaultSeed)
		require.NoError(t, err)
		assert.Equal(t, want.Grid[1][2].Walls, res.Cells[1][2].Walls)
	})

	t.Run("Ascii marks the caller", func(t *testing.T) {
		player := ts.join(t)
		w := ts.do(http.MethodGet, "/api/v1/maze/ascii?player="+player.ID, "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "+---+---+---+---+\n| @"))
		assert.Contains(t, w.Body.String(), " G |")
	})

	t.Run("Players", func(t *testing.T) {
		player := ts.join(t)
		w := ts.do(http.MethodGet, "/api/v1/players", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res []gameapi.PlayerDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		found := false
		for _, p := range res {
			if p.ID == player.ID {
				found = true
				assert.Equal(t, gameapi.PositionDTO{}, p.Position)
			}
		}
		assert.True(t, found)
	})

	t.Run("Rounds", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/rounds", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())

		for _, bad := range []string{"abc", "0", "-2"} {
			w = ts.do(http.MethodGet, "/api/v1/rounds?limit="+bad, "", "")
			assert.Equal(t, http.StatusBadRequest, w.Code, bad)
		}
	})
}

func TestRouterProtected(t *testing.T) {
	ts := newTestServer(t, 6, 6, true)

	t.Run("Missing or bad tokens are rejected", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"east"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"east"}`, "garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		foreign, err := token.IssuePlayer(token.NewJwtService("other", "mazesync-test"), [16]byte{1}, time.Hour)
		require.NoError(t, err)
		w = ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"east"}`, foreign)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Malformed moves", func(t *testing.T) {
		player := ts.join(t)
		w := ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"sideways"}`, player.Token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = ts.do(http.MethodPost, "/api/v1/players/me/moves", `{}`, player.Token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Walls answer with conflict", func(t *testing.T) {
		player := ts.join(t)
		w := ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"north"}`, player.Token)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Legal move", func(t *testing.T) {
		player := ts.join(t)
		sn, err := ts.session.Snapshot()
		require.NoError(t, err)
		dir, want := "east", maze.Position{Row: 0, Col: 1}
		if !sn.Maze.CanMove(maze.Position{}, maze.East) {
			dir, want = "south", maze.Position{Row: 1, Col: 0}
		}

		w := ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"`+dir+`"}`, player.Token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res gameapi.MoveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, gameapi.PositionDTO{Row: want.Row, Col: want.Col}, res.Position)
		assert.False(t, res.Won)

		w = ts.do(http.MethodGet, "/api/v1/players/me", "", player.Token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), player.ID)

		w = ts.do(http.MethodPost, "/api/v1/players/me/spawn", "", player.Token)
		require.Equal(t, http.StatusOK, w.Code)
		var spawned identity.PlayerResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spawned))
		assert.Equal(t, 0, spawned.Row+spawned.Col)
	})

	t.Run("Leaving", func(t *testing.T) {
		player := ts.join(t)
		w := ts.do(http.MethodDelete, "/api/v1/players/me", "", player.Token)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"east"}`, player.Token)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// finishedRoundSession answers every move as if the round had just ended.
type finishedRoundSession struct {
	*service.Session
}

func (finishedRoundSession) Move(context.Context, uuid.UUID, maze.Direction) (service.MoveResult, error) {
	return service.MoveResult{}, fmt.Errorf("%w: seed changed", svc_i.ErrRoundOver)
}

func TestRouterRoundOver(t *testing.T) {
	ts := newTestServer(t, 3, 3, true)
	player := ts.join(t)

	tokenizer := token.NewJwtService("test-secret", "mazesync-test")
	handler := NewRouter(Config{
		BaseURL:                 "/api",
		Controllers:             []api_i.Controller{gameapi.NewGameController(finishedRoundSession{ts.session})},
		AuthorizationMiddleware: identity.Authoriz(tokenizer),
	}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/me/moves", strings.NewReader(`{"direction":"east"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+player.Token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "round is over")
}

func TestRouterWin(t *testing.T) {
	ts := newTestServer(t, 2, 1, true)
	player := ts.join(t)

	w := ts.do(http.MethodPost, "/api/v1/players/me/moves", `{"direction":"right"}`, player.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res gameapi.MoveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Won)
	assert.NotEmpty(t, res.NextSeed)
	require.NotNil(t, res.Round)
	assert.Equal(t, player.ID, res.Round.WinnerID)
}

func TestRouterEvents(t *testing.T) {
	ts := newTestServer(t, 3, 3, true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	next := func() string {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading stream")
		}
		return ""
	}

	assert.Equal(t, "event:snapshot", next())
	assert.True(t, strings.HasPrefix(next(), "data:"))

	_, err = ts.session.Join(context.Background(), [16]byte{7})
	require.NoError(t, err)
	for {
		if l := next(); l == "event:player" {
			break
		}
	}
	data := next()
	require.True(t, strings.HasPrefix(data, "data:"), data)
	var update gameapi.UpdateDTO
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data:")), &update))
	assert.Equal(t, "07000000-0000-0000-0000-000000000000", update.PlayerID)
	require.NotNil(t, update.Position)
	assert.Equal(t, gameapi.PositionDTO{Row: 0, Col: 0}, *update.Position)
}
