package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrInvalidPlacement is returned when a piece is locked somewhere it
	// cannot sit: off the grid, overlapping settled cells, or not the
	// current piece.
	ErrInvalidPlacement = errors.New("invalid placement")
	// ErrTerminalState is returned when a move is attempted after game over.
	ErrTerminalState = errors.New("game is over")
	// ErrInvalidSnapshot is returned by Restore for malformed wire state.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// lineScores is indexed by the number of rows cleared in one lock (capped at 4).
var lineScores = [...]int{0, 100, 300, 500, 800}

// GameState is a single Tetris game. It is owned by one goroutine at a time;
// the piece generator is private to the game.
type GameState struct {
	grid     Grid
	current  Piece
	next     Kind
	score    int
	lines    int
	level    int
	terminal bool

	rng *rand.Rand
}

// New starts a game with an entropy-seeded piece sequence.
func New() *GameState {
	return NewSeeded(rand.Uint64())
}

// NewSeeded starts a game whose piece sequence is fully determined by seed.
func NewSeeded(seed uint64) *GameState {
	s := &GameState{
		level: 1,
		rng:   newRNG(seed),
	}
	s.current = Spawn(s.randomKind())
	s.next = s.randomKind()
	return s
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (s *GameState) randomKind() Kind {
	return Kinds[s.rng.IntN(len(Kinds))]
}

func (s *GameState) Grid() Grid         { return s.grid }
func (s *GameState) Current() Piece     { return s.current }
func (s *GameState) Next() Kind         { return s.next }
func (s *GameState) Score() int         { return s.score }
func (s *GameState) Lines() int         { return s.lines }
func (s *GameState) Level() int         { return s.level }
func (s *GameState) Terminal() bool     { return s.terminal }
func (s *GameState) Features() Features { return s.grid.Features() }

// String renders the settled grid with the current piece drawn in.
func (s *GameState) String() string { return s.grid.Lock(s.current).String() }

// IsValidPosition checks p against the settled cells of this game.
func (s *GameState) IsValidPosition(p Piece) bool {
	return IsValidPosition(&s.grid, p)
}

// LockCurrentPiece settles p (which must be the current piece, typically
// after a drop) and advances the game: lines are cleared and scored at the
// level in force before the lock, the announced next kind becomes the current
// piece and a new next kind is drawn. If the new piece cannot spawn the game
// becomes terminal. It returns the number of rows cleared.
func (s *GameState) LockCurrentPiece(p Piece) (int, error) {
	if s.terminal {
		return 0, ErrTerminalState
	}
	if p.Kind != s.current.Kind {
		return 0, fmt.Errorf("%w: piece %s is not the current %s", ErrInvalidPlacement, p.Kind, s.current.Kind)
	}
	if !IsValidPosition(&s.grid, p) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPlacement, p)
	}

	var cleared int
	s.grid, cleared = s.grid.Lock(p).ClearLines()

	s.score += lineScores[min(cleared, 4)] * s.level
	s.lines += cleared
	s.level = s.lines/10 + 1

	s.current = Spawn(s.next)
	s.next = s.randomKind()
	if !IsValidPosition(&s.grid, s.current) {
		s.terminal = true
	}
	return cleared, nil
}

// PieceState is the wire form of a piece.
type PieceState struct {
	Type     string  `json:"type"`
	Key      string  `json:"key,omitempty"`
	Rotation int     `json:"rotation"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Shape    [][]int `json:"shape,omitempty"`
	Color    string  `json:"color,omitempty"`
}

var kindColors = [...]string{"#00f0f0", "#f0f000", "#a000f0", "#00f000", "#f00000", "#0000f0", "#f0a000"}

// Color is the display colour conventionally used for k.
func (k Kind) Color() string {
	if !k.Valid() {
		return ""
	}
	return kindColors[k]
}

// State converts p to its wire form.
func (p Piece) State() PieceState {
	shape := p.Shape()
	rows := make([][]int, len(shape))
	for i, row := range shape {
		rows[i] = make([]int, len(row))
		for j, v := range row {
			rows[i][j] = int(v)
		}
	}
	return PieceState{
		Type:     p.Kind.String(),
		Key:      p.Kind.String(),
		Rotation: p.Rotation,
		X:        p.X,
		Y:        p.Y,
		Shape:    rows,
		Color:    p.Kind.Color(),
	}
}

// Piece parses the wire form. Either Type or Key may carry the kind.
func (ps PieceState) Piece() (Piece, error) {
	name := ps.Type
	if name == "" {
		name = ps.Key
	}
	k, err := ParseKind(name)
	if err != nil {
		return Piece{}, err
	}
	return Piece{Kind: k, Rotation: ps.Rotation, X: ps.X, Y: ps.Y}, nil
}

// Snapshot is the serialisable view of a game.
type Snapshot struct {
	Board         [][]int    `json:"board"`
	CurrentPiece  PieceState `json:"current_piece"`
	NextPieceType string     `json:"next_piece_type"`
	Score         int        `json:"score"`
	Lines         int        `json:"lines"`
	Level         int        `json:"level"`
	GameOver      bool       `json:"game_over"`
}

func (s *GameState) Snapshot() Snapshot {
	return Snapshot{
		Board:         s.grid.Rows(),
		CurrentPiece:  s.current.State(),
		NextPieceType: s.next.String(),
		Score:         s.score,
		Lines:         s.lines,
		Level:         s.level,
		GameOver:      s.terminal,
	}
}

// Restore rebuilds a game from a snapshot. Piece generation continues from
// seed. A missing next kind is drawn from the generator and a zero level
// is treated as 1; other fields are taken as given.
func Restore(snap Snapshot, seed uint64) (*GameState, error) {
	if len(snap.Board) != Height {
		return nil, fmt.Errorf("%w: board has %d rows, want %d", ErrInvalidSnapshot, len(snap.Board), Height)
	}
	s := &GameState{rng: newRNG(seed)}
	for y, row := range snap.Board {
		if len(row) != Width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidSnapshot, y, len(row), Width)
		}
		for x, v := range row {
			switch v {
			case 0:
			case 1:
				s.grid[y][x] = 1
			default:
				return nil, fmt.Errorf("%w: cell (%d,%d) = %d", ErrInvalidSnapshot, x, y, v)
			}
		}
	}

	cur, err := snap.CurrentPiece.Piece()
	if err != nil {
		return nil, fmt.Errorf("%w: current piece: %v", ErrInvalidSnapshot, err)
	}
	s.current = cur

	if snap.NextPieceType != "" {
		k, err := ParseKind(snap.NextPieceType)
		if err != nil {
			return nil, fmt.Errorf("%w: next piece: %v", ErrInvalidSnapshot, err)
		}
		s.next = k
	} else {
		s.next = s.randomKind()
	}

	if snap.Score < 0 || snap.Lines < 0 || snap.Level < 0 {
		return nil, fmt.Errorf("%w: negative counters", ErrInvalidSnapshot)
	}
	s.score = snap.Score
	s.lines = snap.Lines
	s.level = snap.Level
	if s.level == 0 {
		s.level = 1
	}
	s.terminal = snap.GameOver
	return s, nil
}
