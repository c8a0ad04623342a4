// Package gameapi exposes the maze, the players and live updates over HTTP.
package gameapi

import (
	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
)

// PositionDTO is a grid position.
type PositionDTO struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellDTO carries the walls of one cell in North, East, South, West order.
type CellDTO struct {
	Walls [4]bool `json:"walls"`
}

// MazeResponse is the full maze for the current round.
type MazeResponse struct {
	Seed   string      `json:"seed"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Start  PositionDTO `json:"start"`
	Goal   PositionDTO `json:"goal"`
	Cells  [][]CellDTO `json:"cells"`
}

// PlayerDTO is a player and its position.
type PlayerDTO struct {
	ID       string      `json:"id"`
	Position PositionDTO `json:"position"`
}

// MoveRequest asks to move the caller one cell.
type MoveRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// MoveResponse is the outcome of an accepted move.
type MoveResponse struct {
	Position PositionDTO    `json:"position"`
	Won      bool           `json:"won"`
	NextSeed string         `json:"next_seed,omitempty"`
	Round    *RoundResponse `json:"round,omitempty"`
}

// RoundResponse describes a finished round.
type RoundResponse struct {
	ID         string `json:"id"`
	Seed       string `json:"seed"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	WinnerID   string `json:"winner_id"`
	Moves      int    `json:"moves"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
	DurationMs int64  `json:"duration_ms"`
}

// HealthResponse reports the session state.
type HealthResponse struct {
	State string `json:"state"`
	Seed  string `json:"seed,omitempty"`
}

// UpdateDTO is the payload of a server-sent event.
type UpdateDTO struct {
	Seed     string       `json:"seed,omitempty"`
	PlayerID string       `json:"player_id,omitempty"`
	Position *PositionDTO `json:"position,omitempty"`
}

// SnapshotDTO is the first event of every stream.
type SnapshotDTO struct {
	Seed    string      `json:"seed"`
	Players []PlayerDTO `json:"players"`
}

func toPosition(p maze.Position) PositionDTO {
	return PositionDTO{Row: p.Row, Col: p.Col}
}

func toMaze(sn service.Snapshot) *MazeResponse {
	m := sn.Maze
	cells := make([][]CellDTO, m.Height)
	for r := range cells {
		cells[r] = make([]CellDTO, m.Width)
		for c := range cells[r] {
			cells[r][c] = CellDTO{Walls: m.Grid[r][c].Walls}
		}
	}
	return &MazeResponse{
		Seed:   string(sn.Seed),
		Width:  m.Width,
		Height: m.Height,
		Start:  toPosition(m.Start()),
		Goal:   toPosition(m.Goal()),
		Cells:  cells,
	}
}

func toPlayers(players map[uuid.UUID]maze.Position) []PlayerDTO {
	out := make([]PlayerDTO, 0, len(players))
	for id, pos := range players {
		out = append(out, PlayerDTO{ID: id.String(), Position: toPosition(pos)})
	}
	return out
}

func toRound(r *i.Round) *RoundResponse {
	return &RoundResponse{
		ID:         r.ID.String(),
		Seed:       string(r.Seed),
		Width:      r.Width,
		Height:     r.Height,
		WinnerID:   r.WinnerID.String(),
		Moves:      r.Moves,
		StartedAt:  r.StartedAt.UnixMilli(),
		FinishedAt: r.FinishedAt.UnixMilli(),
		DurationMs: r.Duration().Milliseconds(),
	}
}

func toUpdate(u service.Update) *UpdateDTO {
	dto := &UpdateDTO{Seed: string(u.Seed)}
	if u.PlayerID != uuid.Nil {
		dto.PlayerID = u.PlayerID.String()
	}
	if u.Kind == service.UpdatePlayer {
		p := toPosition(u.Position)
		dto.Position = &p
	}
	return dto
}
