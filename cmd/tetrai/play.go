package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/selfplay"
	"github.com/brensch/tetrai/store"
)

var (
	playWeights    string
	playSeed       uint64
	playMaxMoves   int
	playGames      int
	playArchiveDir string
	playVerbose    bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Let the AI play seeded games and optionally archive every move",
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := loadWeights(playWeights)
		if err != nil {
			return err
		}
		ms := search.New(weights)

		var bw *store.BatchWriter[store.MoveRow]
		if playArchiveDir != "" {
			bw, err = store.NewBatchWriter[store.MoveRow](playArchiveDir, store.SchemaMove)
			if err != nil {
				return err
			}
			slog.Info("archiving moves", "path", bw.OutPath())
		}

		seed := playSeed
		if seed == 0 {
			seed = rand.Uint64()
		}
		seeds := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

		var totalLines, totalScore, played int
		for g := 0; g < playGames; g++ {
			res, err := selfplay.PlayEpisode(cmd.Context(), ms, selfplay.Options{
				Seed:     seeds.Uint64(),
				MaxMoves: playMaxMoves,
				Record:   bw != nil,
				Verbose:  playVerbose,
			})
			if err != nil {
				slog.Warn("game interrupted", "game", g+1, "moves", res.Moves, "err", err)
				break
			}
			played++
			totalLines += res.Lines
			totalScore += res.Score
			slog.Info("game finished",
				"game", g+1,
				"game_id", res.GameID,
				"seed", res.Seed,
				"moves", res.Moves,
				"lines", res.Lines,
				"score", res.Score,
				"level", res.Level,
				"end", res.EndReason,
			)

			if bw != nil {
				if err := bw.WriteGame(res.Rows); err != nil {
					return fmt.Errorf("archive game %s: %w", res.GameID, err)
				}
				slog.Debug("game buffered", "games", bw.BufferedGames(), "rows", bw.BufferedRows())
			}
		}

		if bw != nil {
			path, rows, games, err := bw.Finalize()
			if err != nil {
				return fmt.Errorf("finalize move archive: %w", err)
			}
			slog.Info("wrote move archive", "path", path, "rows", rows, "games", games)
		}

		if played > 0 {
			slog.Info("play summary",
				"games", played,
				"mean_lines", float64(totalLines)/float64(played),
				"mean_score", float64(totalScore)/float64(played),
				"weights", weights,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playWeights, "weights", getEnvOrDefault("TETRAI_WEIGHTS", "weights.json"), "Weights file (defaults are used when missing)")
	playCmd.Flags().Uint64Var(&playSeed, "seed", getEnvUint64OrDefault("TETRAI_SEED", 0), "Seed for the game sequence (0 picks one)")
	playCmd.Flags().IntVar(&playMaxMoves, "max-moves", getEnvIntOrDefault("TETRAI_MAX_MOVES", 800), "Move cap per game (0 means none)")
	playCmd.Flags().IntVar(&playGames, "games", getEnvIntOrDefault("TETRAI_GAMES", 1), "Number of games")
	playCmd.Flags().StringVar(&playArchiveDir, "archive-dir", getEnvOrDefault("TETRAI_ARCHIVE_DIR", ""), "Directory for the parquet move archive (empty disables)")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", getEnvBoolOrDefault("TETRAI_VERBOSE", false), "Log the board after every move at debug level")
}
