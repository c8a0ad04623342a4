package i

import (
	"context"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service"
	svc_i "github.com/beka-birhanu/mazesync/service/i"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Controller registers a group of HTTP routes.
type Controller interface {
	RegisterPublic(*gin.RouterGroup)
	RegisterProtected(*gin.RouterGroup)
}

// GameSession is the part of service.Session the HTTP layer depends on.
type GameSession interface {
	State() service.State
	Snapshot() (service.Snapshot, error)
	Position(id uuid.UUID) (maze.Position, error)
	Join(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	Move(ctx context.Context, id uuid.UUID, d maze.Direction) (service.MoveResult, error)
	Leave(ctx context.Context, id uuid.UUID) error
	Rounds(ctx context.Context, limit int) ([]svc_i.Round, error)
	Listen() *service.Listener
}
