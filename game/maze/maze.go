/*
Package maze provides tools for creating and querying rectangular perfect mazes.

A Maze is generated from its dimensions and a Seed with an iterative recursive
backtracker. Every random decision comes from a Sequence derived from the seed
and neighbours are always enumerated North, East, South, West, so the same
(width, height, seed) always yields the same walls.

The package also provides movement validation, path analysis over open
passages and ASCII visualization of the maze.
*/
package maze

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zyedidia/generic/stack"
)

var (
	ErrInvalidDimensions = errors.New("invalid maze dimensions")
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInvalidMove       = errors.New("invalid move request")
	ErrOutOfBounds       = errors.New("position is out of the maze")
)

// Maze represents a rectangular maze consisting of cells with walls.
type Maze struct {
	Width  int      // Width of the maze (number of columns)
	Height int      // Height of the maze (number of rows)
	Seed   Seed     // Seed the maze was generated from
	Grid   [][]Cell // Height x Width grid of cells, indexed [row][col]
}

// candidate is a neighbour of the current cell together with the wall pair
// that has to be cleared to connect them.
type candidate struct {
	pos      Position
	wall     Direction
	opposite Direction
}

// New generates a maze of the given dimensions from seed. An empty seed is
// treated as DefaultSeed.
func New(width, height int, seed Seed) (*Maze, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	grid := make([][]Cell, height)
	for i := range grid {
		grid[i] = make([]Cell, width)
		for j := range grid[i] {
			grid[i][j] = newCell(i, j)
		}
	}

	m := &Maze{
		Width:  width,
		Height: height,
		Seed:   seed.OrDefault(),
		Grid:   grid,
	}
	m.generate(NewSequence(m.Seed))
	return m, nil
}

// generate carves passages with a depth-first walk over an explicit stack.
func (m *Maze) generate(rnd *Sequence) {
	visited := make([][]bool, m.Height)
	for i := range visited {
		visited[i] = make([]bool, m.Width)
	}

	row := rnd.Intn(m.Height)
	col := rnd.Intn(m.Width)
	current := Position{Row: row, Col: col}

	path := stack.New[Position]()
	path.Push(current)
	visited[current.Row][current.Col] = true
	visitedCount := 1
	total := m.Width * m.Height

	neighbors := make([]candidate, 0, 4)
	for visitedCount < total {
		neighbors = neighbors[:0]
		for _, d := range Directions {
			next := current.Add(d)
			if m.InBound(next) && !visited[next.Row][next.Col] {
				neighbors = append(neighbors, candidate{pos: next, wall: d, opposite: d.Opposite()})
			}
		}

		if len(neighbors) == 0 {
			// Dead end: rewind to the previous cell on the path.
			current = path.Pop()
			continue
		}

		next := neighbors[rnd.Intn(len(neighbors))]
		m.Grid[current.Row][current.Col].Walls[next.wall] = false
		m.Grid[next.pos.Row][next.pos.Col].Walls[next.opposite] = false

		visited[next.pos.Row][next.pos.Col] = true
		visitedCount++
		current = next.pos
		path.Push(current)
	}
}

// InBound reports whether pos lies inside the grid.
func (m *Maze) InBound(pos Position) bool {
	return pos.Row >= 0 && pos.Row < m.Height && pos.Col >= 0 && pos.Col < m.Width
}

// Cell returns the cell at pos.
func (m *Maze) Cell(pos Position) (Cell, error) {
	if !m.InBound(pos) {
		return Cell{}, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	return m.Grid[pos.Row][pos.Col], nil
}

// Start is the spawn position of every player.
func (m *Maze) Start() Position {
	return Position{Row: 0, Col: 0}
}

// Goal is the bottom-right cell.
func (m *Maze) Goal() Position {
	return Position{Row: m.Height - 1, Col: m.Width - 1}
}

// CanMove reports whether a player at pos may step in direction d.
func (m *Maze) CanMove(pos Position, d Direction) bool {
	if !d.Valid() || !m.InBound(pos) {
		return false
	}
	if m.Grid[pos.Row][pos.Col].HasWall(d) {
		return false
	}
	return m.InBound(pos.Add(d))
}

// Step returns the position reached by moving from pos in direction d.
func (m *Maze) Step(pos Position, d Direction) (Position, error) {
	if !d.Valid() {
		return pos, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	if !m.InBound(pos) {
		return pos, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	if !m.CanMove(pos, d) {
		return pos, ErrInvalidMove
	}
	return pos.Add(d), nil
}

// String provides a textual representation of the maze with the goal marked.
func (m *Maze) String() string {
	return m.Render(nil)
}

// Render draws the maze as ASCII. Markers are drawn in their cells; the goal
// is drawn as 'G' unless a marker covers it.
func (m *Maze) Render(markers map[Position]rune) string {
	var b strings.Builder

	// Top boundary
	b.WriteString("+" + strings.Repeat("---+", m.Width) + "\n")

	goal := m.Goal()
	for row := 0; row < m.Height; row++ {
		b.WriteString("|")
		for col := 0; col < m.Width; col++ {
			cell := m.Grid[row][col]
			pos := Position{Row: row, Col: col}

			mark := ' '
			if pos == goal {
				mark = 'G'
			}
			if r, ok := markers[pos]; ok {
				mark = r
			}
			b.WriteString(" " + string(mark) + " ")

			if cell.HasWall(East) {
				b.WriteString("|")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")

		b.WriteString("+")
		for col := 0; col < m.Width; col++ {
			if m.Grid[row][col].HasWall(South) {
				b.WriteString("---+")
			} else {
				b.WriteString("   +")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
