// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sd-oa-harvest/internal/planner"
	"github.com/pdiddy/sd-oa-harvest/internal/progress"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the journal-years the next run would search",
	Long: `Plan reads the holdings report and the checkpoint and prints, for each
journal, the publication years the next run would query, newest first. No API
requests are made.

Scanning a journal stops at the first year already recorded as complete; the
stopped_at column shows that year. A year left pending by a failed or
interrupted run restarts the scan there, down to the next completed year.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().String("format", "table", "output format: table, yaml or json")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rows, err := loadHoldings(cfg, logger)
	if err != nil {
		return err
	}
	store, err := progress.Open(cfg.Progress)
	if err != nil {
		return fmt.Errorf("opening checkpoint %s: %w", cfg.Progress.File, err)
	}
	defer store.Close()

	return formatPlan(cmd.OutOrStdout(), planner.Plan(rows, store), format)
}

func formatPlan(w io.Writer, plans []planner.JournalPlan, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plans); err != nil {
			return fmt.Errorf("encoding plan: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plans)
	case "table", "":
	default:
		return fmt.Errorf("unsupported format %q: use table, yaml or json", format)
	}

	fmt.Fprintf(w, "%-12s  %-5s  %-5s  %-5s  %-10s  %s\n",
		"ISSN", "First", "Last", "Units", "Stopped at", "Years")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, p := range plans {
		stopped := "-"
		if p.StoppedAt != 0 {
			stopped = fmt.Sprintf("%d", p.StoppedAt)
		}
		fmt.Fprintf(w, "%-12s  %-5d  %-5d  %-5d  %-10s  %s\n",
			p.Row.JournalID, p.Row.FirstYear, p.Row.LastYear, len(p.Years), stopped, yearRange(p.Years))
	}
	fmt.Fprintf(w, "\n%d journals, %d journal-years to search\n", len(plans), planner.TotalUnits(plans))
	return nil
}

// yearRange abbreviates a descending run of years as "2025..2001".
func yearRange(years []int) string {
	switch len(years) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d", years[0])
	}
	return fmt.Sprintf("%d..%d", years[0], years[len(years)-1])
}
