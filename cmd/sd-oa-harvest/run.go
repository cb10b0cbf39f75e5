// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/sd-oa-harvest/internal/harvest"
	"github.com/pdiddy/sd-oa-harvest/internal/metrics"
	"github.com/pdiddy/sd-oa-harvest/internal/planner"
	"github.com/pdiddy/sd-oa-harvest/internal/progress"
	"github.com/pdiddy/sd-oa-harvest/internal/scidir"
	"github.com/pdiddy/sd-oa-harvest/internal/secrets"
	"github.com/pdiddy/sd-oa-harvest/internal/sink"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest open-access article URIs for every journal-year",
	Long: `Run plans the journal-years of the holdings report, newest first, and
queries the search API for each one not yet recorded in the checkpoint. URIs
are appended to the output file as pages arrive; a journal-year is recorded
only after all of its pages have been written.

A journal-year that fails (HTTP error, timeout, malformed response) stays
pending, and the journal's older years are left for the next run, which
resumes at the pending year. URIs written before the failure stay in the
output, so a retried journal-year may repeat them.
Interrupting the run (Ctrl-C) keeps every journal-year already recorded.`,
	RunE: runHarvest,
}

func init() {
	runCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	runCmd.Flags().Duration("page-delay", 0, "delay between consecutive page requests")
	runCmd.Flags().String("metrics-file", "", "write Prometheus textfile metrics here when the run ends")

	bindFlag("http.timeout", runCmd.Flags().Lookup("timeout"))
	bindFlag("harvest.page_delay", runCmd.Flags().Lookup("page-delay"))
	bindFlag("metrics.file", runCmd.Flags().Lookup("metrics-file"))

	rootCmd.AddCommand(runCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	apiKey, err := secrets.APIKey(cfg.APIKeyFile, cfg.SecretsDir)
	if err != nil {
		return err
	}

	rows, err := loadHoldings(cfg, logger)
	if err != nil {
		return err
	}

	store, err := progress.Open(cfg.Progress)
	if err != nil {
		return fmt.Errorf("opening checkpoint %s: %w", cfg.Progress.File, err)
	}
	defer store.Close()

	out, err := sink.Open(cfg.Output.File)
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plans := planner.Plan(rows, store)
	logger.Info("search plan ready",
		zap.Int("journals", len(plans)),
		zap.Int("units", planner.TotalUnits(plans)),
		zap.String("checkpoint", cfg.Progress.File),
		zap.String("output", cfg.Output.File))

	rec := metrics.New()
	h := &harvest.Harvester{
		Fetcher: &scidir.Client{
			HTTP:      &http.Client{Timeout: cfg.HTTP.Timeout},
			APIKey:    apiKey,
			BaseURL:   cfg.API.BaseURL,
			PageSize:  cfg.API.PageSize,
			UserAgent: cfg.HTTP.UserAgent,
		},
		Sink:      out,
		Progress:  store,
		Logger:    logger,
		Metrics:   rec,
		PageDelay: cfg.Harvest.PageDelay,
	}

	sum, runErr := h.Run(ctx, plans)
	if err := rec.WriteTextfile(cfg.Metrics.File); err != nil {
		logger.Warn("metrics export failed", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("harvest stopped; completed journal-years are checkpointed",
			zap.Int("units_completed", sum.UnitsCompleted), zap.Error(runErr))
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nHarvest summary: %d journal-years completed, %d failed, %d deferred, %d URIs written (%d planned)\n",
		sum.UnitsCompleted, sum.UnitsFailed(), sum.UnitsDeferred, sum.URIs, sum.UnitsPlanned)
	if sum.HasFailures() {
		return fmt.Errorf("%d journal-year(s) failed; rerun to retry them", sum.UnitsFailed())
	}
	return nil
}
