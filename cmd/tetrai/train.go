package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/brensch/tetrai/logging"
	"github.com/brensch/tetrai/store"
	"github.com/brensch/tetrai/trainer"
	"github.com/brensch/tetrai/tui"
)

var (
	trainGenerations int
	trainPopulation  int
	trainEpisodes    int
	trainMaxMoves    int
	trainWorkers     int
	trainSeed        uint64
	trainWeightsOut  string
	trainArchiveDir  string
	trainTUI         bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Evolve evaluation weights with a genetic algorithm",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := trainer.DefaultConfig()
		cfg.Generations = trainGenerations
		cfg.PopulationSize = trainPopulation
		cfg.Episodes = trainEpisodes
		cfg.MaxMoves = trainMaxMoves
		cfg.Parallelism = trainWorkers
		cfg.Seed = trainSeed

		t := trainer.New(cfg)
		slog.Info("training started",
			"run_id", t.RunID(),
			"generations", cfg.Generations,
			"population", cfg.PopulationSize,
			"episodes", t.Config().Episodes,
			"workers", t.Config().Parallelism,
		)

		var (
			res trainer.Result
			err error
		)
		if trainTUI {
			res, err = trainWithTUI(cmd.Context(), t)
		} else {
			res, err = t.Run(cmd.Context(), logProgress)
		}
		stopped := errors.Is(err, context.Canceled)
		if err != nil && !stopped {
			return err
		}

		if trainArchiveDir != "" && len(res.Generations) > 0 {
			path, werr := store.WriteParquetAtomic(trainArchiveDir, store.SchemaEvaluation, trainer.EvaluationRows(res, t.Config()))
			if werr != nil {
				return fmt.Errorf("archive evaluations: %w", werr)
			}
			slog.Info("wrote evaluation archive", "path", path)
		}

		if stopped {
			slog.Warn("training stopped before completion; weights not saved",
				"generations", len(res.Generations),
				"best_fitness", res.BestFitness,
				"best_weights", res.BestWeights,
			)
			return nil
		}

		if err := store.SaveWeights(trainWeightsOut, [4]float64(res.BestWeights)); err != nil {
			return err
		}
		slog.Info("training complete",
			"run_id", res.RunID,
			"best_fitness", res.BestFitness,
			"best_weights", res.BestWeights,
			"weights_out", trainWeightsOut,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	d := trainer.DefaultConfig()
	trainCmd.Flags().IntVar(&trainGenerations, "generations", getEnvIntOrDefault("TETRAI_GENERATIONS", d.Generations), "Number of generations")
	trainCmd.Flags().IntVar(&trainPopulation, "population", getEnvIntOrDefault("TETRAI_POPULATION", d.PopulationSize), "Population size")
	trainCmd.Flags().IntVar(&trainEpisodes, "episodes", getEnvIntOrDefault("TETRAI_EPISODES", d.Episodes), "Episodes averaged per fitness evaluation")
	trainCmd.Flags().IntVar(&trainMaxMoves, "max-moves", getEnvIntOrDefault("TETRAI_MAX_MOVES", d.MaxMoves), "Move cap per episode")
	trainCmd.Flags().IntVar(&trainWorkers, "workers", getEnvIntOrDefault("TETRAI_WORKERS", d.Parallelism), "Parallel fitness evaluations")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", getEnvUint64OrDefault("TETRAI_SEED", 0), "Random seed (0 picks one)")
	trainCmd.Flags().StringVar(&trainWeightsOut, "weights-out", getEnvOrDefault("TETRAI_WEIGHTS", "weights.json"), "Where to write the best weights")
	trainCmd.Flags().StringVar(&trainArchiveDir, "archive-dir", getEnvOrDefault("TETRAI_ARCHIVE_DIR", ""), "Directory for the parquet evaluation archive (empty disables)")
	trainCmd.Flags().BoolVar(&trainTUI, "tui", getEnvBoolOrDefault("TETRAI_TUI", false), "Show a live terminal monitor")
}

func logProgress(p trainer.Progress) {
	if p.Kind == trainer.ProgressIndividual {
		slog.Debug("individual evaluated",
			"generation", p.Generation,
			"individual", p.Individual,
			"fitness", p.Fitness,
			"percent", p.Percent,
		)
	}
}

// trainWithTUI runs the trainer in the background and renders its progress
// until it returns or the user quits.
func trainWithTUI(ctx context.Context, t *trainer.Trainer) (trainer.Result, error) {
	// Log lines would tear the terminal UI.
	if _, err := logging.Setup(io.Discard, logFormat, logLevel); err != nil {
		return trainer.Result{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan trainer.Progress, 256)
	p := tea.NewProgram(tui.New(updates, cancel), tea.WithContext(ctx))

	type outcome struct {
		res trainer.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.Run(ctx, trainer.ChannelSink(updates))
		// Run has flushed its observer, so nothing sends on updates after this.
		close(updates)
		done <- outcome{res, err}
		p.Send(tui.DoneMsg{BestWeights: res.BestWeights, BestFitness: res.BestFitness, Err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	out := <-done

	if _, err := logging.Setup(os.Stderr, logFormat, logLevel); err != nil {
		return out.res, err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		slog.Warn("terminal ui exited", "err", uiErr)
	}
	return out.res, out.err
}
