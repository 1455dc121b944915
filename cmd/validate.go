package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatsim/app/plugins"
	"github.com/kilianp07/heatsim/config"
	"github.com/kilianp07/heatsim/core/series"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/infra/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Build every component and report configuration errors",
	RunE:  runValidate,
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the module types accepted in the configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		av := plugins.Available()
		for _, kind := range []string{plugins.KindGenerator, plugins.KindSink} {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, strings.Join(av[kind], ", "))
		}
		return nil
	},
}

var validateInputs string

func init() {
	validateCmd.Flags().StringVarP(&validateInputs, "inputs", "i", "", "also check an input series against the horizon")
	rootCmd.AddCommand(validateCmd, pluginsCmd)
}

// runValidate does not contact any broker or database; sink types are
// checked against the registry only.
func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setup, err := cfg.Setup()
	if err != nil {
		return err
	}
	d, err := simulation.New(setup, logger.NopLogger{})
	if err != nil {
		return err
	}
	sinks := plugins.Available()[plugins.KindSink]
	for i, s := range cfg.Metrics.Sinks {
		if !slices.Contains(sinks, s.Type) {
			return fmt.Errorf("metrics sink %d: unknown type %q", i, s.Type)
		}
	}
	if validateInputs != "" {
		in, err := series.Load(validateInputs)
		if err != nil {
			return fmt.Errorf("load inputs: %w", err)
		}
		if err := in.Validate(cfg.Simulation.HorizonSteps); err != nil {
			return err
		}
	}
	ids := make([]string, 0, len(setup.Units))
	for _, u := range d.Units() {
		ids = append(ids, fmt.Sprintf("%s (%s)", u.ID(), u.Type()))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d layers, %.1f kWh capacity, units %s\n",
		setup.Storage.Layers, d.Storage().CapacityKWh(), strings.Join(ids, ", "))
	return nil
}
