// Package store persists weight vectors and training/self-play archives.
//
// Archives are parquet files written atomically (temp file then rename) so a
// reader globbing a directory never sees a partial file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const (
	SchemaEvaluation = "evaluation_v1"
	SchemaMove       = "move_v1"
)

// EvaluationRow is one fitness evaluation of one individual in one
// generation of a training run.
type EvaluationRow struct {
	RunID      string  `parquet:"run_id,dict"`
	Generation int32   `parquet:"generation"`
	Individual int32   `parquet:"individual"`
	W0         float64 `parquet:"w0"`
	W1         float64 `parquet:"w1"`
	W2         float64 `parquet:"w2"`
	W3         float64 `parquet:"w3"`
	Fitness    float64 `parquet:"fitness"`
	Elite      bool    `parquet:"elite"`
	Episodes   int32   `parquet:"episodes"`
	MaxMoves   int32   `parquet:"max_moves"`
	CreatedAt  int64   `parquet:"created_at_ns"`
}

// MoveRow is a single placement of a self-play game.
//
// Board is the grid after the placement and line clear, row-major, one byte
// per cell.
type MoveRow struct {
	GameID       string  `parquet:"game_id,dict"`
	Seed         uint64  `parquet:"seed"`
	Move         int32   `parquet:"move"`
	Kind         string  `parquet:"kind,dict"`
	Rotation     int32   `parquet:"rotation"`
	Column       int32   `parquet:"column"`
	FinalY       int32   `parquet:"final_y"`
	Eval         float64 `parquet:"eval"`
	LinesCleared int32   `parquet:"lines_cleared"`
	Score        int64   `parquet:"score"`
	Lines        int32   `parquet:"lines"`
	Level        int32   `parquet:"level"`
	Board        []byte  `parquet:"board,zstd"`
}

// WriteParquetAtomic writes rows to a new batch file in outDir. The file is
// staged under outDir/tmp and renamed into place. The returned path is the
// final parquet file path.
func WriteParquetAtomic[T any](outDir, schema string, rows []T) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d.parquet", schema, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadParquet loads every row of a file written by WriteParquetAtomic.
func ReadParquet[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
