// Package search scores every placement of the current piece with a linear
// board heuristic and picks the best one.
//
// A placement (Action) is a rotation plus a target column. The piece is
// hard-dropped from the top row and the resulting board is scored as
//
//	w0*aggregateHeight + w1*holes + w2*bumpiness + w3*linesCleared
//
// where linesCleared counts the rows that placement itself completes.
package search

import (
	"errors"
	"sort"

	"github.com/brensch/tetrai/game"
)

// Infeasible is the score given to an action whose spawn row is blocked.
const Infeasible = -9999.0

// ErrNoLegalMoves is returned by BestMove when no placement exists.
var ErrNoLegalMoves = errors.New("no legal moves")

// Weights are the heuristic coefficients, in feature order.
type Weights [4]float64

// DefaultWeights is the built-in tuned vector used when no trained weights are
// available.
var DefaultWeights = Weights{-0.510066, -0.76663, -0.384483, 1.860666}

// Dot scores a feature vector.
func (w Weights) Dot(f game.Features, linesCleared int) float64 {
	return w[0]*float64(f.AggregateHeight) +
		w[1]*float64(f.Holes) +
		w[2]*float64(f.Bumpiness) +
		w[3]*float64(linesCleared)
}

// Position is the part of a game the search reads.
type Position interface {
	Grid() game.Grid
	Current() game.Piece
}

// Action is a rotation and the column of the piece's left edge.
type Action struct {
	Rotation int `json:"rotation"`
	Column   int `json:"column"`
}

// Move is a scored action with the dropped piece it produces.
type Move struct {
	Rotation int
	Column   int
	FinalY   int
	Score    float64
	Piece    game.Piece
}

// MoveSearch is immutable and safe for concurrent use.
type MoveSearch struct {
	weights Weights
}

func New(w Weights) *MoveSearch {
	return &MoveSearch{weights: w}
}

func (m *MoveSearch) Weights() Weights { return m.weights }

// LegalActions lists every (rotation, column) whose piece fits on the top row,
// rotation-major and columns ascending.
func (m *MoveSearch) LegalActions(pos Position) []Action {
	grid := pos.Grid()
	kind := pos.Current().Kind
	n := game.RotationCount(kind)

	actions := make([]Action, 0, n*game.Width)
	for r := 0; r < n; r++ {
		w := game.ShapeOf(kind, r).Width()
		for col := 0; col <= game.Width-w; col++ {
			p := game.Piece{Kind: kind, Rotation: r, X: col, Y: 0}
			if game.IsValidPosition(&grid, p) {
				actions = append(actions, Action{Rotation: r, Column: col})
			}
		}
	}
	return actions
}

// Drop moves p down until one more row would be invalid.
func Drop(g *game.Grid, p game.Piece) game.Piece {
	for game.IsValidPosition(g, p.Move(0, 1)) {
		p = p.Move(0, 1)
	}
	return p
}

// Evaluate scores a single action. The live position is not modified.
func (m *MoveSearch) Evaluate(pos Position, a Action) float64 {
	s, _ := m.evaluate(pos.Grid(), pos.Current().Kind, a)
	return s
}

func (m *MoveSearch) evaluate(grid game.Grid, kind game.Kind, a Action) (float64, game.Piece) {
	p := game.Piece{Kind: kind, Rotation: a.Rotation, X: a.Column, Y: 0}
	if !game.IsValidPosition(&grid, p) {
		return Infeasible, p
	}
	p = Drop(&grid, p)

	after, cleared := grid.Lock(p).ClearLines()
	return m.weights.Dot(after.Features(), cleared), p
}

// BestMove returns the highest scoring action. Ties go to the earliest
// action in LegalActions order.
func (m *MoveSearch) BestMove(pos Position) (Move, error) {
	grid := pos.Grid()
	kind := pos.Current().Kind

	actions := m.LegalActions(pos)
	if len(actions) == 0 {
		return Move{}, ErrNoLegalMoves
	}

	best := -1
	var bestMove Move
	for i, a := range actions {
		score, p := m.evaluate(grid, kind, a)
		if best < 0 || score > bestMove.Score {
			best = i
			bestMove = Move{Rotation: a.Rotation, Column: a.Column, FinalY: p.Y, Score: score, Piece: p}
		}
	}
	return bestMove, nil
}

// TopK evaluates every legal action and returns the k best, highest first.
// Equal scores keep their enumeration order.
func (m *MoveSearch) TopK(pos Position, k int) []Move {
	if k <= 0 {
		return nil
	}
	grid := pos.Grid()
	kind := pos.Current().Kind

	actions := m.LegalActions(pos)
	moves := make([]Move, 0, len(actions))
	for _, a := range actions {
		score, p := m.evaluate(grid, kind, a)
		moves = append(moves, Move{Rotation: a.Rotation, Column: a.Column, FinalY: p.Y, Score: score, Piece: p})
	}
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Score > moves[j].Score })
	if len(moves) > k {
		moves = moves[:k]
	}
	return moves
}

// Confidence grades how clearly the first move beats the second.
func Confidence(moves []Move) string {
	if len(moves) <= 1 {
		return "high"
	}
	diff := moves[0].Score - moves[1].Score
	switch {
	case diff > 50:
		return "high"
	case diff > 20:
		return "medium"
	default:
		return "low"
	}
}
