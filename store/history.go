package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// GenerationSummary aggregates one generation of one training run.
type GenerationSummary struct {
	RunID       string
	Generation  int
	Individuals int
	Best        float64
	Mean        float64
	Worst       float64
	BestWeights [4]float64
}

// History summarises every evaluation archive under dir, ordered by run and
// generation. An empty directory yields no rows.
func History(ctx context.Context, dir string) ([]GenerationSummary, error) {
	db, err := openEvaluations(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			run_id,
			generation,
			COUNT(*) AS individuals,
			MAX(fitness) AS best,
			AVG(fitness) AS mean,
			MIN(fitness) AS worst,
			arg_max(w0, fitness) AS w0,
			arg_max(w1, fitness) AS w1,
			arg_max(w2, fitness) AS w2,
			arg_max(w3, fitness) AS w3
		FROM evaluations
		GROUP BY run_id, generation
		ORDER BY MIN(created_at_ns), run_id, generation`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []GenerationSummary
	for rows.Next() {
		var s GenerationSummary
		if err := rows.Scan(&s.RunID, &s.Generation, &s.Individuals, &s.Best, &s.Mean, &s.Worst,
			&s.BestWeights[0], &s.BestWeights[1], &s.BestWeights[2], &s.BestWeights[3]); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func openEvaluations(ctx context.Context, dir string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}

	matches, _ := filepath.Glob(filepath.Join(dir, SchemaEvaluation+"_*.parquet"))
	if len(matches) == 0 {
		_, err = db.ExecContext(ctx, `CREATE OR REPLACE VIEW evaluations AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS run_id,
					NULL::INTEGER AS generation,
					NULL::INTEGER AS individual,
					NULL::DOUBLE AS w0,
					NULL::DOUBLE AS w1,
					NULL::DOUBLE AS w2,
					NULL::DOUBLE AS w3,
					NULL::DOUBLE AS fitness,
					NULL::BOOLEAN AS elite,
					NULL::INTEGER AS episodes,
					NULL::INTEGER AS max_moves,
					NULL::BIGINT AS created_at_ns
			) WHERE 1=0`)
	} else {
		glob := filepath.Join(dir, SchemaEvaluation+"_*.parquet")
		_, err = db.ExecContext(ctx, fmt.Sprintf(
			`CREATE OR REPLACE VIEW evaluations AS SELECT * FROM read_parquet('%s')`,
			escapeSQLString(glob)))
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create evaluations view: %w", err)
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
