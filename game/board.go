// Package game defines the Tetris board, the tetromino table and the game
// state machine.
//
// Grid is a fixed-size array so that assigning or passing it by value is a
// full copy. Search code relies on that to simulate placements without
// touching the live game.
package game

import "strings"

const (
	Width  = 10
	Height = 20
)

// Grid holds the settled cells, row 0 on top. A cell is 0 (empty) or 1.
type Grid [Height][Width]uint8

// Features are the board statistics the move evaluator weighs.
type Features struct {
	AggregateHeight int
	Holes           int
	Bumpiness       int
	MaxHeight       int
}

// IsValidPosition reports whether every occupied cell of p lies on the grid
// and on an empty cell. A piece of an undefined kind is never valid.
func IsValidPosition(g *Grid, p Piece) bool {
	if !p.Kind.Valid() {
		return false
	}
	shape := p.Shape()
	for r, row := range shape {
		for c, v := range row {
			if v == 0 {
				continue
			}
			x, y := p.X+c, p.Y+r
			if x < 0 || x >= Width || y < 0 || y >= Height {
				return false
			}
			if g[y][x] != 0 {
				return false
			}
		}
	}
	return true
}

// Lock returns a copy of g with p's cells set. Cells off the grid are skipped.
func (g Grid) Lock(p Piece) Grid {
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= Width || c.Y < 0 || c.Y >= Height {
			continue
		}
		g[c.Y][c.X] = 1
	}
	return g
}

// ClearLines removes every full row, shifting the remaining rows down in
// order and padding empty rows at the top. It returns the new grid and the
// number of rows removed.
func (g Grid) ClearLines() (Grid, int) {
	var out Grid
	dst := Height - 1
	cleared := 0
	for y := Height - 1; y >= 0; y-- {
		if rowFull(&g[y]) {
			cleared++
			continue
		}
		out[dst] = g[y]
		dst--
	}
	return out, cleared
}

func rowFull(row *[Width]uint8) bool {
	for _, v := range row {
		if v == 0 {
			return false
		}
	}
	return true
}

// ColumnHeights returns, per column, Height minus the index of its topmost
// filled cell (0 for an empty column).
func (g *Grid) ColumnHeights() [Width]int {
	var heights [Width]int
	for x := 0; x < Width; x++ {
		for y := 0; y < Height; y++ {
			if g[y][x] != 0 {
				heights[x] = Height - y
				break
			}
		}
	}
	return heights
}

// Features computes the evaluator statistics. A hole is an empty cell with a
// filled cell somewhere above it in the same column.
func (g *Grid) Features() Features {
	heights := g.ColumnHeights()

	var f Features
	for x, h := range heights {
		f.AggregateHeight += h
		if h > f.MaxHeight {
			f.MaxHeight = h
		}
		if x > 0 {
			d := h - heights[x-1]
			if d < 0 {
				d = -d
			}
			f.Bumpiness += d
		}
	}

	for x := 0; x < Width; x++ {
		seen := false
		for y := 0; y < Height; y++ {
			if g[y][x] != 0 {
				seen = true
			} else if seen {
				f.Holes++
			}
		}
	}
	return f
}

// Filled counts occupied cells.
func (g *Grid) Filled() int {
	n := 0
	for y := range g {
		for _, v := range g[y] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// String renders the grid top to bottom with '#' for filled cells.
func (g Grid) String() string {
	var sb strings.Builder
	sb.Grow((Width + 1) * Height)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if g[y][x] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Rows returns the grid as nested slices, the shape used on the wire.
func (g *Grid) Rows() [][]int {
	rows := make([][]int, Height)
	for y := range rows {
		rows[y] = make([]int, Width)
		for x, v := range g[y] {
			rows[y][x] = int(v)
		}
	}
	return rows
}

// Flatten returns the cells in row-major order.
func (g *Grid) Flatten() []byte {
	out := make([]byte, 0, Width*Height)
	for y := range g {
		out = append(out, g[y][:]...)
	}
	return out
}
