package maze

import (
	"fmt"
	"strings"
)

// Direction identifies one side of a cell. The numeric order is the wall
// order used everywhere in this package: North, East, South, West.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction in enumeration order.
var Directions = [4]Direction{North, East, South, West}

var directionDeltas = [4]Position{
	North: {Row: -1, Col: 0},
	East:  {Row: 0, Col: 1},
	South: {Row: 1, Col: 0},
	West:  {Row: 0, Col: -1},
}

var directionNames = [4]string{"North", "East", "South", "West"}

// Opposite returns the direction facing back across the same edge.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Delta returns the row/column offset of a single step in the direction.
func (d Direction) Delta() Position {
	return directionDeltas[d]
}

// Valid reports whether d is one of the four directions.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// String returns the direction name.
func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection converts a direction name (case-insensitive, "up"/"right"/
// "down"/"left" accepted too) into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "east", "e", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "w", "left":
		return West, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Position represents the position of a cell in the maze grid.
type Position struct {
	Row int // Row index of the cell
	Col int // Column index of the cell
}

// Add returns the position one step away in direction d.
func (p Position) Add(d Direction) Position {
	delta := d.Delta()
	return Position{Row: p.Row + delta.Row, Col: p.Col + delta.Col}
}

// String formats the position as "row,col".
func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.Row, p.Col)
}

// Cell represents a single cell in a maze grid.
type Cell struct {
	I     int     // Row index
	J     int     // Column index
	Walls [4]bool // Walls indexed by Direction; true means the wall is present
}

func newCell(i, j int) Cell {
	return Cell{I: i, J: j, Walls: [4]bool{true, true, true, true}}
}

// HasWall reports whether the wall on side d is present.
func (c Cell) HasWall(d Direction) bool {
	return c.Walls[d]
}

// Openings counts the sides without a wall.
func (c Cell) Openings() int {
	n := 0
	for _, w := range c.Walls {
		if !w {
			n++
		}
	}
	return n
}
