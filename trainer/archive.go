package trainer

import (
	"time"

	"github.com/brensch/tetrai/store"
)

// EvaluationRows flattens a training result into archive rows.
func EvaluationRows(res Result, cfg Config) []store.EvaluationRow {
	now := time.Now().UnixNano()
	var rows []store.EvaluationRow
	for _, g := range res.Generations {
		for _, e := range g.Evaluations {
			rows = append(rows, store.EvaluationRow{
				RunID:      res.RunID,
				Generation: int32(g.Generation),
				Individual: int32(e.Individual),
				W0:         e.Weights[0],
				W1:         e.Weights[1],
				W2:         e.Weights[2],
				W3:         e.Weights[3],
				Fitness:    e.Fitness,
				Elite:      e.Elite,
				Episodes:   int32(cfg.Episodes),
				MaxMoves:   int32(cfg.MaxMoves),
				CreatedAt:  now + int64(g.Generation),
			})
		}
	}
	return rows
}
