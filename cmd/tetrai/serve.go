package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/brensch/tetrai/server"
)

var (
	serveListen      string
	serveWeights     string
	serveArchiveDir  string
	serveMaxSessions int
	serveMaxGens     int
	serveMaxPop      int
	serveShutdown    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the move search, game sessions and training over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := loadWeights(serveWeights)
		if err != nil {
			return err
		}

		cfg := server.DefaultConfig()
		cfg.Addr = serveListen
		cfg.Weights = weights
		cfg.WeightsPath = serveWeights
		cfg.ArchiveDir = serveArchiveDir
		cfg.MaxSessions = serveMaxSessions
		cfg.MaxGenerations = serveMaxGens
		cfg.MaxPopulation = serveMaxPop
		cfg.ShutdownTimeout = serveShutdown

		return server.New(cfg).ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", getEnvOrDefault("TETRAI_LISTEN", ":8000"), "Address to listen on")
	serveCmd.Flags().StringVar(&serveWeights, "weights", getEnvOrDefault("TETRAI_WEIGHTS", "weights.json"), "Weights file loaded at startup and replaced after training")
	serveCmd.Flags().StringVar(&serveArchiveDir, "archive-dir", getEnvOrDefault("TETRAI_ARCHIVE_DIR", ""), "Directory for parquet evaluation archives (empty disables)")
	serveCmd.Flags().IntVar(&serveMaxSessions, "max-sessions", getEnvIntOrDefault("TETRAI_MAX_SESSIONS", 1024), "Maximum live game sessions")
	serveCmd.Flags().IntVar(&serveMaxGens, "max-generations", getEnvIntOrDefault("TETRAI_MAX_GENERATIONS", 500), "Largest generations value accepted by /train")
	serveCmd.Flags().IntVar(&serveMaxPop, "max-population", getEnvIntOrDefault("TETRAI_MAX_POPULATION", 500), "Largest population_size accepted by /train")
	serveCmd.Flags().DurationVar(&serveShutdown, "shutdown-timeout", getEnvDurationOrDefault("TETRAI_SHUTDOWN_TIMEOUT", 10*time.Second), "Grace period for in-flight requests on shutdown")
}
