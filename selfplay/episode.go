// Package selfplay plays complete games with a MoveSearch choosing every
// placement. The trainer uses it to score weight vectors and the CLI uses it
// to archive games.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brensch/tetrai/game"
	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/store"
	"github.com/oklog/ulid/v2"
)

// EndReason says why an episode stopped.
type EndReason string

const (
	EndGameOver EndReason = "game_over"
	EndNoMoves  EndReason = "no_moves"
	EndMoveCap  EndReason = "move_cap"
	EndStopped  EndReason = "stopped"
)

type Options struct {
	// GameID labels archived rows. A ULID is generated when empty and
	// Record is set.
	GameID string
	Seed   uint64
	// MaxMoves caps the number of placements. Zero means no cap.
	MaxMoves int
	// Record collects one store.MoveRow per placement.
	Record bool
	// Verbose logs the board after every placement at debug level.
	Verbose bool

	OnStep        func(Step)
	StopRequested func() bool
}

// Step describes one placement, reported through Options.OnStep.
type Step struct {
	Move         int
	Piece        game.Piece
	LinesCleared int
	Score        int
	Lines        int
	Level        int
}

type Result struct {
	GameID    string
	Seed      uint64
	Moves     int
	Lines     int
	Score     int
	Level     int
	Terminal  bool
	EndReason EndReason
	Rows      []store.MoveRow
}

// PlayEpisode runs one game from a fresh seeded state until game over, no
// legal move, the move cap, or a stop request. On cancellation the partial
// result is returned together with ctx.Err().
func PlayEpisode(ctx context.Context, ms *search.MoveSearch, opts Options) (Result, error) {
	logCtx := ctx
	if logCtx == nil {
		logCtx = context.Background()
	}
	stopRequested := opts.StopRequested
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}

	gameID := opts.GameID
	if gameID == "" && opts.Record {
		gameID = ulid.Make().String()
	}

	state := game.NewSeeded(opts.Seed)
	res := Result{GameID: gameID, Seed: opts.Seed}
	if opts.Record {
		res.Rows = make([]store.MoveRow, 0, 256)
	}

	finish := func(reason EndReason) Result {
		res.Score = state.Score()
		res.Lines = state.Lines()
		res.Level = state.Level()
		res.Terminal = state.Terminal()
		res.EndReason = reason
		return res
	}

	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return finish(EndStopped), ctx.Err()
			default:
			}
		}
		if stopRequested() {
			return finish(EndStopped), nil
		}
		if state.Terminal() {
			return finish(EndGameOver), nil
		}
		if opts.MaxMoves > 0 && res.Moves >= opts.MaxMoves {
			return finish(EndMoveCap), nil
		}

		best, err := ms.BestMove(state)
		if errors.Is(err, search.ErrNoLegalMoves) {
			return finish(EndNoMoves), nil
		}
		if err != nil {
			return finish(EndStopped), fmt.Errorf("best move: %w", err)
		}

		cleared, err := state.LockCurrentPiece(best.Piece)
		if err != nil {
			return finish(EndStopped), fmt.Errorf("lock move %d: %w", res.Moves, err)
		}
		res.Moves++

		if opts.Record {
			grid := state.Grid()
			res.Rows = append(res.Rows, store.MoveRow{
				GameID:       gameID,
				Seed:         opts.Seed,
				Move:         int32(res.Moves),
				Kind:         best.Piece.Kind.String(),
				Rotation:     int32(best.Rotation),
				Column:       int32(best.Column),
				FinalY:       int32(best.FinalY),
				Eval:         best.Score,
				LinesCleared: int32(cleared),
				Score:        int64(state.Score()),
				Lines:        int32(state.Lines()),
				Level:        int32(state.Level()),
				Board:        grid.Flatten(),
			})
		}

		if opts.OnStep != nil {
			opts.OnStep(Step{
				Move:         res.Moves,
				Piece:        best.Piece,
				LinesCleared: cleared,
				Score:        state.Score(),
				Lines:        state.Lines(),
				Level:        state.Level(),
			})
		}

		if opts.Verbose && slog.Default().Enabled(logCtx, slog.LevelDebug) {
			slog.DebugContext(logCtx, "placement",
				"game_id", gameID,
				"move", res.Moves,
				"piece", best.Piece.String(),
				"cleared", cleared,
				"board", PrintBoard(state),
			)
		}
	}
}
