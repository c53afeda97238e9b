package game

import "fmt"

// Kind identifies one of the seven tetrominoes.
type Kind uint8

const (
	KindI Kind = iota
	KindO
	KindT
	KindS
	KindZ
	KindJ
	KindL
)

// Kinds lists every piece kind in generation order.
var Kinds = [...]Kind{KindI, KindO, KindT, KindS, KindZ, KindJ, KindL}

var kindNames = [...]string{"I", "O", "T", "S", "Z", "J", "L"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the seven defined kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// ParseKind maps a one-letter name ("I", "O", ...) to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown piece kind %q", s)
}

// Shape is a rotation state: rows top to bottom, 1 marks an occupied cell.
type Shape [][]uint8

// rotations is the classical rotation table. The order of states per kind is
// fixed; rotation indices are always reduced modulo the state count.
var rotations = [...][]Shape{
	KindI: {
		{{1, 1, 1, 1}},
		{{1}, {1}, {1}, {1}},
	},
	KindO: {
		{{1, 1}, {1, 1}},
	},
	KindT: {
		{{0, 1, 0}, {1, 1, 1}},
		{{1, 0}, {1, 1}, {1, 0}},
		{{1, 1, 1}, {0, 1, 0}},
		{{0, 1}, {1, 1}, {0, 1}},
	},
	KindS: {
		{{0, 1, 1}, {1, 1, 0}},
		{{1, 0}, {1, 1}, {0, 1}},
	},
	KindZ: {
		{{1, 1, 0}, {0, 1, 1}},
		{{0, 1}, {1, 1}, {1, 0}},
	},
	KindJ: {
		{{1, 0, 0}, {1, 1, 1}},
		{{1, 1}, {1, 0}, {1, 0}},
		{{1, 1, 1}, {0, 0, 1}},
		{{0, 1}, {0, 1}, {1, 1}},
	},
	KindL: {
		{{0, 0, 1}, {1, 1, 1}},
		{{1, 0}, {1, 0}, {1, 1}},
		{{1, 1, 1}, {1, 0, 0}},
		{{1, 1}, {0, 1}, {0, 1}},
	},
}

// RotationCount returns how many distinct rotation states k has, or 0 for an
// undefined kind.
func RotationCount(k Kind) int {
	if !k.Valid() {
		return 0
	}
	return len(rotations[k])
}

// ShapeOf returns the matrix for kind k at rotation r (taken modulo the count).
// The returned slice is shared and must not be modified. An undefined kind has
// a nil shape.
func ShapeOf(k Kind, r int) Shape {
	if !k.Valid() {
		return nil
	}
	states := rotations[k]
	n := len(states)
	return states[((r%n)+n)%n]
}

// Width is the number of columns in the shape.
func (s Shape) Width() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Height is the number of rows in the shape.
func (s Shape) Height() int {
	return len(s)
}

// Point is a grid cell, X is the column and Y the row (row 0 on top).
type Point struct {
	X int
	Y int
}

// Piece is a tetromino placed at (X, Y), the top-left corner of its shape's
// bounding box. Pieces are values; Move and Rotate return new pieces.
type Piece struct {
	Kind     Kind
	Rotation int
	X        int
	Y        int
}

// Shape returns the piece's current rotation matrix.
func (p Piece) Shape() Shape {
	return ShapeOf(p.Kind, p.Rotation)
}

func (p Piece) Width() int  { return p.Shape().Width() }
func (p Piece) Height() int { return p.Shape().Height() }

// Cells returns the absolute coordinates of every occupied cell.
func (p Piece) Cells() []Point {
	shape := p.Shape()
	cells := make([]Point, 0, 4)
	for r, row := range shape {
		for c, v := range row {
			if v != 0 {
				cells = append(cells, Point{X: p.X + c, Y: p.Y + r})
			}
		}
	}
	return cells
}

// Rotate returns the piece advanced one rotation state clockwise.
func (p Piece) Rotate() Piece {
	if n := RotationCount(p.Kind); n > 0 {
		p.Rotation = (p.Rotation + 1) % n
	}
	return p
}

// Move returns the piece shifted by (dx, dy).
func (p Piece) Move(dx, dy int) Piece {
	p.X += dx
	p.Y += dy
	return p
}

func (p Piece) String() string {
	return fmt.Sprintf("%s r%d (%d,%d)", p.Kind, p.Rotation, p.X, p.Y)
}

// Spawn places a fresh piece of kind k at rotation 0, horizontally centred on
// the top row.
func Spawn(k Kind) Piece {
	w := ShapeOf(k, 0).Width()
	return Piece{Kind: k, Rotation: 0, X: Width/2 - w/2, Y: 0}
}
