package maze

import (
	"github.com/zyedidia/generic/mapset"
	"github.com/zyedidia/generic/stack"
)

// Passages counts the open edges between cells. A perfect maze has exactly
// Width*Height-1 of them.
func (m *Maze) Passages() int {
	n := 0
	for row := range m.Grid {
		for col := range m.Grid[row] {
			// Count each edge once, from its north-west side.
			if col+1 < m.Width && !m.Grid[row][col].Walls[East] {
				n++
			}
			if row+1 < m.Height && !m.Grid[row][col].Walls[South] {
				n++
			}
		}
	}
	return n
}

// Distances walks the open passages from `from` and returns the number of
// steps to every reachable cell. Because the passage graph is a tree, the
// depth-first walk yields shortest distances.
func (m *Maze) Distances(from Position) map[Position]int {
	dist := make(map[Position]int)
	if !m.InBound(from) {
		return dist
	}

	seen := mapset.New[Position]()
	pending := stack.New[Position]()
	pending.Push(from)
	seen.Put(from)
	dist[from] = 0

	for pending.Size() > 0 {
		cell := pending.Pop()
		for _, d := range Directions {
			if !m.CanMove(cell, d) {
				continue
			}
			next := cell.Add(d)
			if seen.Has(next) {
				continue
			}
			seen.Put(next)
			dist[next] = dist[cell] + 1
			pending.Push(next)
		}
	}

	return dist
}

// Reachable reports whether `to` can be reached from `from` through open
// passages.
func (m *Maze) Reachable(from, to Position) bool {
	_, ok := m.Distances(from)[to]
	return ok
}

// SolutionLength returns the number of steps from Start to Goal, or -1 when
// the goal cannot be reached.
func (m *Maze) SolutionLength() int {
	if d, ok := m.Distances(m.Start())[m.Goal()]; ok {
		return d
	}
	return -1
}

// IsPerfect reports whether the passage graph is a spanning tree: every cell
// reachable and exactly Width*Height-1 passages.
func (m *Maze) IsPerfect() bool {
	total := m.Width * m.Height
	if m.Passages() != total-1 {
		return false
	}
	return len(m.Distances(m.Start())) == total
}
