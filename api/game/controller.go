package gameapi

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/beka-birhanu/mazesync/api/i"
	"github.com/beka-birhanu/mazesync/api/identity"
	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service"
	svc_i "github.com/beka-birhanu/mazesync/service/i"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultRoundsLimit = 10
	maxRoundsLimit     = 100
)

// GameController serves the maze, the players and live updates.
type GameController struct {
	session i.GameSession
}

// NewGameController creates a new GameController.
func NewGameController(s i.GameSession) *GameController {
	return &GameController{session: s}
}

// RegisterPublic registers public routes.
func (gc *GameController) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/health", gc.health)
	route.GET("/maze", gc.maze)
	route.GET("/maze/ascii", gc.ascii)
	route.GET("/players", gc.players)
	route.GET("/rounds", gc.rounds)
	route.GET("/events", gc.events)
}

// RegisterProtected registers protected routes.
func (gc *GameController) RegisterProtected(route *gin.RouterGroup) {
	route.POST("/players/me/moves", gc.move)
}

// health reports 200 once the session is ready and 503 before.
func (gc *GameController) health(ctx *gin.Context) {
	state := gc.session.State()
	res := &HealthResponse{State: state.String()}
	if state != service.Ready {
		ctx.JSON(http.StatusServiceUnavailable, res)
		return
	}
	if sn, err := gc.session.Snapshot(); err == nil {
		res.Seed = string(sn.Seed)
	}
	ctx.JSON(http.StatusOK, res)
}

func (gc *GameController) maze(ctx *gin.Context) {
	sn, ok := gc.snapshot(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, toMaze(sn))
}

// ascii renders the maze as text. Players are drawn as 'P' and the player
// given in ?player= as '@'.
func (gc *GameController) ascii(ctx *gin.Context) {
	sn, ok := gc.snapshot(ctx)
	if !ok {
		return
	}

	self, _ := uuid.Parse(ctx.Query("player"))
	markers := make(map[maze.Position]rune, len(sn.Players))
	for id, pos := range sn.Players {
		if _, taken := markers[pos]; taken && id != self {
			continue
		}
		if id == self {
			markers[pos] = '@'
			continue
		}
		markers[pos] = 'P'
	}
	ctx.String(http.StatusOK, sn.Maze.Render(markers))
}

func (gc *GameController) players(ctx *gin.Context) {
	sn, ok := gc.snapshot(ctx)
	if !ok {
		return
	}
	players := toPlayers(sn.Players)
	sort.Slice(players, func(a, b int) bool { return players[a].ID < players[b].ID })
	ctx.JSON(http.StatusOK, players)
}

func (gc *GameController) rounds(ctx *gin.Context) {
	limit := defaultRoundsLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRoundsLimit)
	}

	rounds, err := gc.session.Rounds(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not load rounds"})
		return
	}

	res := make([]*RoundResponse, 0, len(rounds))
	for n := range rounds {
		res = append(res, toRound(&rounds[n]))
	}
	ctx.JSON(http.StatusOK, res)
}

// events streams session updates as server-sent events, starting with a
// snapshot of the current seed and players.
func (gc *GameController) events(ctx *gin.Context) {
	sn, ok := gc.snapshot(ctx)
	if !ok {
		return
	}

	l := gc.session.Listen()
	defer l.Close()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.SSEvent("snapshot", &SnapshotDTO{Seed: string(sn.Seed), Players: toPlayers(sn.Players)})
	ctx.Writer.Flush()

	done := ctx.Request.Context().Done()
	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case u := <-l.Updates():
			ctx.SSEvent(string(u.Kind), toUpdate(u))
			return true
		}
	})
}

func (gc *GameController) move(ctx *gin.Context) {
	var request MoveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := maze.ParseDirection(request.Direction)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, _ := identity.PlayerID(ctx)
	res, err := gc.session.Move(ctx.Request.Context(), id, d)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, maze.ErrInvalidMove), errors.Is(err, svc_i.ErrRoundOver):
			status = http.StatusConflict
		case errors.Is(err, service.ErrUnknownPlayer):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrNotReady):
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"error": err.Error(), "position": toPosition(res.Position)})
		return
	}

	response := &MoveResponse{
		Position: toPosition(res.Position),
		Won:      res.Won,
		NextSeed: string(res.NextSeed),
	}
	if res.Round != nil {
		response.Round = toRound(res.Round)
	}
	ctx.JSON(http.StatusOK, response)
}

func (gc *GameController) snapshot(ctx *gin.Context) (service.Snapshot, bool) {
	sn, err := gc.session.Snapshot()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return sn, false
	}
	return sn, true
}
