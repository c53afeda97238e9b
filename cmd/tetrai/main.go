// Command tetrai plays, trains and serves the Tetris heuristic AI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brensch/tetrai/logging"
	"github.com/brensch/tetrai/search"
	"github.com/brensch/tetrai/store"
)

var (
	logFormat string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:           "tetrai",
	Short:         "Tetris simulator, heuristic AI and genetic weight trainer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := logging.Setup(os.Stderr, logFormat, logLevel)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", getEnvOrDefault("TETRAI_LOG_FORMAT", "text"), "Log format: text, json or pretty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnvOrDefault("TETRAI_LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadWeights reads a weights file, falling back to the built-in weights
// when path is empty or the file does not exist yet.
func loadWeights(path string) (search.Weights, error) {
	if path == "" {
		return search.DefaultWeights, nil
	}
	w, err := store.LoadWeights(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("weights file not found, using defaults", "path", path)
		return search.DefaultWeights, nil
	}
	if err != nil {
		return search.Weights{}, fmt.Errorf("load weights %s: %w", path, err)
	}
	return search.Weights(w), nil
}
