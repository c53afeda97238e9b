package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brensch/tetrai/store"
)

var (
	reportArchiveDir string
	reportRunID      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise archived training runs per generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := store.History(cmd.Context(), reportArchiveDir)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tGEN\tN\tBEST\tMEAN\tWORST\tBEST WEIGHTS")
		shown := 0
		for _, h := range history {
			if reportRunID != "" && h.RunID != reportRunID {
				continue
			}
			shown++
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t[%.4f %.4f %.4f %.4f]\n",
				h.RunID, h.Generation, h.Individuals, h.Best, h.Mean, h.Worst,
				h.BestWeights[0], h.BestWeights[1], h.BestWeights[2], h.BestWeights[3])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if shown == 0 {
			fmt.Fprintf(os.Stderr, "no evaluations found in %s\n", reportArchiveDir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportArchiveDir, "archive-dir", getEnvOrDefault("TETRAI_ARCHIVE_DIR", "archive"), "Directory holding evaluation parquet files")
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Only show this run id")
}
