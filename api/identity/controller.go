package identity

import (
	"errors"
	"net/http"
	"time"

	api_i "github.com/beka-birhanu/mazesync/api/i"
	"github.com/beka-birhanu/mazesync/infrastruture/token"
	"github.com/beka-birhanu/mazesync/service"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlayerController hands out player identities and manages presence.
type PlayerController struct {
	session   api_i.GameSession
	tokenizer i.Tokenizer
	tokenTTL  time.Duration
}

// NewPlayerController creates a new PlayerController.
func NewPlayerController(s api_i.GameSession, t i.Tokenizer, ttl time.Duration) *PlayerController {
	return &PlayerController{
		session:   s,
		tokenizer: t,
		tokenTTL:  ttl,
	}
}

// RegisterPublic registers public routes.
func (c *PlayerController) RegisterPublic(route *gin.RouterGroup) {
	route.POST("/players", c.join)
}

// RegisterProtected registers privileged routes.
func (c *PlayerController) RegisterProtected(route *gin.RouterGroup) {
	me := route.Group("/players/me")
	{
		me.GET("", c.me)
		me.POST("/spawn", c.spawn)
		me.DELETE("", c.leave)
	}
}

// join creates a new player on the start cell and returns its token.
func (c *PlayerController) join(ctx *gin.Context) {
	id, err := c.session.Join(ctx.Request.Context(), uuid.Nil)
	if err != nil {
		writeError(ctx, err)
		return
	}

	tok, err := token.IssuePlayer(c.tokenizer, id, c.tokenTTL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	pos, _ := c.session.Position(id)
	ctx.JSON(http.StatusCreated, &JoinResponse{
		ID:       id.String(),
		Token:    tok,
		Row:      pos.Row,
		Col:      pos.Col,
		ExpireAt: time.Now().Add(c.tokenTTL).Unix(),
	})
}

// me returns the caller's current position.
func (c *PlayerController) me(ctx *gin.Context) {
	id, _ := PlayerID(ctx)
	pos, err := c.session.Position(id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, &PlayerResponse{ID: id.String(), Row: pos.Row, Col: pos.Col})
}

// spawn puts the caller back on the start cell, e.g. after a new round began.
func (c *PlayerController) spawn(ctx *gin.Context) {
	id, _ := PlayerID(ctx)
	if _, err := c.session.Join(ctx.Request.Context(), id); err != nil {
		writeError(ctx, err)
		return
	}
	pos, _ := c.session.Position(id)
	ctx.JSON(http.StatusOK, &PlayerResponse{ID: id.String(), Row: pos.Row, Col: pos.Col})
}

// leave removes the caller from the game.
func (c *PlayerController) leave(ctx *gin.Context) {
	id, _ := PlayerID(ctx)
	if err := c.session.Leave(ctx.Request.Context(), id); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotReady):
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownPlayer):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
