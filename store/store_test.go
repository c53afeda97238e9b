package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weights.json")
	w := [4]float64{-0.510066, -0.76663, -0.384483, 1.860666}

	require.NoError(t, SaveWeights(path, w))
	got, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestWeightsFileRejectsBadContent(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(short, []byte("[1, 2, 3]"), 0o644))
	_, err := LoadWeights(short)
	assert.ErrorIs(t, err, ErrBadWeights)

	junk := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(junk, []byte("{\"w\": 1}"), 0o644))
	_, err = LoadWeights(junk)
	assert.ErrorIs(t, err, ErrBadWeights)

	assert.ErrorIs(t, SaveWeights(filepath.Join(dir, "nan.json"), [4]float64{math.NaN()}), ErrBadWeights)

	_, err = LoadWeights(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	rows := []MoveRow{
		{GameID: "g1", Seed: 7, Move: 1, Kind: "T", Rotation: 2, Column: 3, FinalY: 18, Board: make([]byte, 200)},
		{GameID: "g1", Seed: 7, Move: 2, Kind: "I", Column: 0, FinalY: 19, LinesCleared: 1, Score: 100, Lines: 1, Level: 1, Board: make([]byte, 200)},
	}

	path, err := WriteParquetAtomic(dir, SchemaMove, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	got, err := ReadParquet[MoveRow](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "I", got[1].Kind)
	assert.Equal(t, int64(100), got[1].Score)

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)

	path, err = WriteParquetAtomic[MoveRow](dir, SchemaMove, nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter[MoveRow](dir, SchemaMove)
	require.NoError(t, err)

	require.NoError(t, bw.WriteGame([]MoveRow{{GameID: "a", Move: 1}, {GameID: "a", Move: 2}}))
	require.NoError(t, bw.WriteGame([]MoveRow{{GameID: "b", Move: 1}}))
	assert.Equal(t, 3, bw.BufferedRows())
	assert.Equal(t, 2, bw.BufferedGames())
	require.NoError(t, bw.WriteGame(nil))
	assert.Equal(t, 2, bw.BufferedGames())

	_, err = os.Stat(bw.OutPath())
	assert.True(t, os.IsNotExist(err), "output visible before Finalize")

	path, rows, games, err := bw.Finalize()
	require.NoError(t, err)
	assert.Equal(t, bw.OutPath(), path)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, games)

	got, err := ReadParquet[MoveRow](path)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	assert.Error(t, bw.WriteGame([]MoveRow{{GameID: "c"}}))
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	empty, err := History(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, empty)

	rows := []EvaluationRow{
		{RunID: "run", Generation: 1, Individual: 1, W0: -1, Fitness: 2, CreatedAt: 1},
		{RunID: "run", Generation: 1, Individual: 2, W0: -0.5, Fitness: 6, CreatedAt: 2},
		{RunID: "run", Generation: 2, Individual: 1, W0: -0.25, Fitness: 10, CreatedAt: 3},
	}
	_, err = WriteParquetAtomic(dir, SchemaEvaluation, rows)
	require.NoError(t, err)

	got, err := History(ctx, dir)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Generation)
	assert.Equal(t, 2, got[0].Individuals)
	assert.InDelta(t, 6.0, got[0].Best, 1e-9)
	assert.InDelta(t, 4.0, got[0].Mean, 1e-9)
	assert.InDelta(t, 2.0, got[0].Worst, 1e-9)
	assert.InDelta(t, -0.5, got[0].BestWeights[0], 1e-9)
	assert.Equal(t, 2, got[1].Generation)
}
