package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatsim/app"
	"github.com/kilianp07/heatsim/config"
	"github.com/kilianp07/heatsim/core/series"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/infra/logger"
	"github.com/kilianp07/heatsim/infra/metrics"
	"github.com/kilianp07/heatsim/pkg/export"
)

var (
	inputPath   string
	outputPath  string
	metricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate one input series",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "inputs", "i", "", "input series file (yaml or json)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write step results to a .csv or .json file")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address until interrupted")
	_ = runCmd.MarkFlagRequired("inputs")
	rootCmd.AddCommand(runCmd)
}

// load reads the configuration and the input series and builds the service.
func load() (*app.Service, *config.Config, series.Series, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, series.Series{}, fmt.Errorf("load config: %w", err)
	}
	in, err := series.Load(inputPath)
	if err != nil {
		return nil, nil, series.Series{}, fmt.Errorf("load inputs: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return nil, nil, series.Series{}, err
	}
	return svc, cfg, in, nil
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New("run-command")
	svc, cfg, in, err := load()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.ListenAddr
	}
	srvErr := make(chan error, 1)
	if addr != "" {
		go func() { srvErr <- metrics.StartPromServer(ctx, addr, nil) }()
	}

	out, runErr := svc.Run(ctx, in)
	if out != nil {
		printSummary(cmd.OutOrStdout(), out)
		if outputPath != "" {
			if err := export.WriteFile(outputPath, out.Results); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if addr == "" {
		return nil
	}
	logg.Infof("run finished, serving metrics on %s until interrupted", addr)
	select {
	case <-ctx.Done():
		return nil
	case err := <-srvErr:
		return err
	}
}

func printSummary(w io.Writer, out *simulation.Outcome) {
	s := out.Summary
	fmt.Fprintf(w, "%s %s (%s): %d steps\n", out.Name, out.ID, out.Phase, s.Steps)
	fmt.Fprintf(w, "  cost %.2f, unmet %d, overflow %d, underflow %d\n", s.TotalCost, s.UnmetSteps, s.OverflowSteps, s.UnderflowSteps)
	sources := make([]string, 0, len(s.EnergyBySource))
	for k := range s.EnergyBySource {
		sources = append(sources, k)
	}
	sort.Strings(sources)
	for _, k := range sources {
		fmt.Fprintf(w, "  %-12s %10.1f kWh\n", k, s.EnergyBySource[k])
	}
}
