package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/infra/logger"
	"github.com/kilianp07/heatsim/pkg/export"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the plant with and without its heat pumps",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&inputPath, "inputs", "i", "", "input series file (yaml or json)")
	compareCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the summary table to a csv file")
	_ = compareCmd.MarkFlagRequired("inputs")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New("compare-command")
	svc, _, in, err := load()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	outs, runErr := svc.Compare(ctx, in)
	names := make([]string, 0, len(outs))
	sums := make([]model.Summary, 0, len(outs))
	for _, out := range outs {
		if out == nil {
			continue
		}
		printSummary(cmd.OutOrStdout(), out)
		names = append(names, out.Name)
		sums = append(sums, out.Summary)
	}
	if len(names) > 0 {
		w := cmd.OutOrStdout()
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := export.WriteSummaryCSV(w, names, sums); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return runErr
}
