package game

import (
	"reflect"
	"testing"
)

func TestRotationTable(t *testing.T) {
	want := map[Kind]int{KindI: 2, KindO: 1, KindT: 4, KindS: 2, KindZ: 2, KindJ: 4, KindL: 4}
	for k, n := range want {
		if got := RotationCount(k); got != n {
			t.Errorf("%s: %d rotations, want %d", k, got, n)
		}
		for r := 0; r < n; r++ {
			cells := Piece{Kind: k, Rotation: r}.Cells()
			if len(cells) != 4 {
				t.Errorf("%s r%d: %d cells, want 4", k, r, len(cells))
			}
		}
	}

	if !reflect.DeepEqual(ShapeOf(KindT, -1), ShapeOf(KindT, 3)) {
		t.Errorf("negative rotation not reduced modulo count")
	}
	if !reflect.DeepEqual(ShapeOf(KindI, 5), ShapeOf(KindI, 1)) {
		t.Errorf("rotation 5 of I should equal rotation 1")
	}
	if got := (Piece{Kind: KindS, Rotation: 1}).Rotate().Rotation; got != 0 {
		t.Errorf("S rotation wraps to %d, want 0", got)
	}
}

func TestSpawnPosition(t *testing.T) {
	cases := []struct {
		kind Kind
		x    int
	}{
		{KindI, 3},
		{KindO, 4},
		{KindT, 4},
		{KindL, 4},
	}
	for _, c := range cases {
		p := Spawn(c.kind)
		if p.X != c.x || p.Y != 0 || p.Rotation != 0 {
			t.Errorf("Spawn(%s) = %s, want x=%d y=0 r0", c.kind, p, c.x)
		}
	}
}

func TestIsValidPosition(t *testing.T) {
	var g Grid
	g[19][0] = 1

	cases := []struct {
		name string
		p    Piece
		want bool
	}{
		{"origin", Piece{Kind: KindO, X: 0, Y: 0}, true},
		{"right edge", Piece{Kind: KindI, X: 6, Y: 0}, true},
		{"past right edge", Piece{Kind: KindI, X: 7, Y: 0}, false},
		{"left of grid", Piece{Kind: KindO, X: -1, Y: 0}, false},
		{"above grid", Piece{Kind: KindO, X: 0, Y: -1}, false},
		{"below grid", Piece{Kind: KindO, X: 4, Y: 19}, false},
		{"floor", Piece{Kind: KindO, X: 4, Y: 18}, true},
		{"overlap", Piece{Kind: KindO, X: 0, Y: 18}, false},
		{"vertical I on floor", Piece{Kind: KindI, Rotation: 1, X: 9, Y: 16}, true},
	}
	for _, c := range cases {
		if got := IsValidPosition(&g, c.p); got != c.want {
			t.Errorf("%s: IsValidPosition(%s) = %v, want %v\n%s", c.name, c.p, got, c.want, g)
		}
	}
}

func TestClearLinesSingleRow(t *testing.T) {
	var g Grid
	for x := 0; x < Width; x++ {
		g[19][x] = 1
	}
	g[18][0] = 1

	out, n := g.ClearLines()
	if n != 1 {
		t.Fatalf("cleared %d rows, want 1", n)
	}
	if out[19][0] != 1 {
		t.Errorf("row above a cleared row should drop by one\n%s", out)
	}
	if out.Filled() != 1 {
		t.Errorf("filled = %d, want 1\n%s", out.Filled(), out)
	}
	if g.Filled() != 11 {
		t.Errorf("ClearLines modified its receiver")
	}
}

func TestClearLinesNonAdjacent(t *testing.T) {
	var g Grid
	for x := 0; x < Width; x++ {
		g[19][x] = 1
		g[17][x] = 1
	}
	g[18][2] = 1
	g[16][7] = 1

	out, n := g.ClearLines()
	if n != 2 {
		t.Fatalf("cleared %d rows, want 2", n)
	}
	if out[19][2] != 1 || out[18][7] != 1 || out.Filled() != 2 {
		t.Errorf("remaining rows not shifted in order\n%s", out)
	}
}

func TestFeatures(t *testing.T) {
	var g Grid
	g[17][0] = 1
	g[19][0] = 1
	g[19][1] = 1

	want := Features{AggregateHeight: 4, Holes: 1, Bumpiness: 3, MaxHeight: 3}
	if got := g.Features(); got != want {
		t.Fatalf("Features() = %+v, want %+v\n%s", got, want, g)
	}
	if got := g.Features(); got != want {
		t.Fatalf("second Features() call differs: %+v", got)
	}
	if g.Filled() != 3 {
		t.Fatalf("Features modified the grid")
	}
}

func TestLockThenFeatures(t *testing.T) {
	var g Grid
	g = g.Lock(Piece{Kind: KindO, X: 0, Y: 18})

	want := Features{AggregateHeight: 4, Holes: 0, Bumpiness: 2, MaxHeight: 2}
	if got := g.Features(); got != want {
		t.Fatalf("Features() = %+v, want %+v\n%s", got, want, g)
	}
	if h := g.ColumnHeights(); h[0] != 2 || h[1] != 2 || h[2] != 0 {
		t.Fatalf("ColumnHeights() = %v", h)
	}
}

func TestEmptyGridFeatures(t *testing.T) {
	var g Grid
	if got := g.Features(); got != (Features{}) {
		t.Fatalf("empty grid features = %+v", got)
	}
}

func TestUndefinedKindIsRejected(t *testing.T) {
	bad := Piece{Kind: Kind(len(Kinds)), X: 4}
	if RotationCount(bad.Kind) != 0 || ShapeOf(bad.Kind, 1) != nil {
		t.Fatalf("undefined kind has rotations")
	}
	var g Grid
	if IsValidPosition(&g, bad) {
		t.Fatalf("undefined kind reported valid")
	}
	if got := bad.Rotate(); got != bad {
		t.Fatalf("Rotate changed an undefined kind: %s", got)
	}
	if len(bad.Cells()) != 0 || bad.Width() != 0 {
		t.Fatalf("undefined kind has cells")
	}

	s := NewSeeded(1)
	if s.IsValidPosition(Piece{Kind: 200}) {
		t.Fatalf("state accepted an undefined kind")
	}
}
