package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/kilianp07/heatsim/api/runs"
	"github.com/kilianp07/heatsim/api/units"
	"github.com/kilianp07/heatsim/config"
	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/results"
	"github.com/kilianp07/heatsim/infra/kpi"
	"github.com/kilianp07/heatsim/infra/logger"
	"github.com/kilianp07/heatsim/infra/metrics"
	"github.com/kilianp07/heatsim/jobs/ecokpi"
)

var (
	serveAddr    string
	serveToken   string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs, unit KPIs and metrics over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveToken, "token", os.Getenv("HEATSIM_API_TOKEN"), "bearer token required by /api/runs")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "origins allowed to call the API from a browser")
	serveCmd.Flags().StringVar(&ecoDBPath, "db", "", "read unit KPIs from this SQLite file instead of rebuilding them")
	serveCmd.Flags().Float64Var(&ecoFuelFactor, "fuel-factor", metrics.DefaultFuelFactor, "kg CO2 per kWh of fuel")
	serveCmd.Flags().Float64Var(&ecoGridFactor, "grid-factor", metrics.DefaultGridFactor, "kg CO2 per kWh of grid electricity")
	rootCmd.AddCommand(serveCmd)
}

// newMux builds the routes served by the serve command. Cross-origin
// requests are only answered for the given origins.
func newMux(rs results.Store, es eco.Store, token string, g prometheus.Gatherer, origins []string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/runs", runs.NewHandler(rs, token))
	mux.Handle("/api/units/", units.NewKPIHandler(es, ecoFuelFactor, ecoGridFactor))
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	if len(origins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Authorization"},
	}).Handler(mux)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("serve-command")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Results.Enabled() {
		return errors.New("serve: no results backend configured")
	}
	rs, err := results.NewStore(cfg.Results)
	if err != nil {
		return err
	}
	defer rs.Close()

	var es eco.Store
	if ecoDBPath != "" {
		db, err := kpi.NewSQLiteStore(ecoDBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		es = db
	} else {
		mem := eco.NewMemoryStore()
		history, err := rs.Query(ctx, results.Query{})
		if err != nil {
			return err
		}
		n, err := ecokpi.Backfill(mem, history)
		if err != nil {
			return err
		}
		log.Infof("rebuilt unit KPIs from the latest run of each scenario (%d stored runs, %d steps)", len(history), n)
		es = mem
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           newMux(rs, es, serveToken, prometheus.DefaultGatherer, serveOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("server shutdown: %v", err)
		}
	}()
	log.Infof("serving on %s", serveAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
