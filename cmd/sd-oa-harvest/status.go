// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sd-oa-harvest/internal/progress"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the journal-years recorded in the checkpoint",
	Long: `Status prints the checkpoint: for each journal, the publication years
whose open-access articles have been fully harvested. The table format also
lists journal-years left pending by a failed or interrupted run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("format", "table", "output format: table, yaml or json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := progress.Open(cfg.Progress)
	if err != nil {
		return fmt.Errorf("opening checkpoint %s: %w", cfg.Progress.File, err)
	}
	defer store.Close()

	return formatStatus(cmd.OutOrStdout(), store.Snapshot(), store.Pending(), format)
}

func formatStatus(w io.Writer, snap, pending map[string][]int, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "table", "":
	default:
		return fmt.Errorf("unsupported format %q: use table, yaml or json", format)
	}

	if len(snap) == 0 {
		fmt.Fprintln(w, "No journal-years completed yet.")
		writePending(w, pending)
		return nil
	}

	ids := sortedKeys(snap)

	fmt.Fprintf(w, "%-12s  %-5s  %s\n", "ISSN", "Years", "Completed")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	total := 0
	for _, id := range ids {
		fmt.Fprintf(w, "%-12s  %-5d  %s\n", id, len(snap[id]), yearList(snap[id]))
		total += len(snap[id])
	}
	fmt.Fprintf(w, "\n%d journals, %d journal-years completed\n", len(ids), total)
	writePending(w, pending)
	return nil
}

func writePending(w io.Writer, pending map[string][]int) {
	if len(pending) == 0 {
		return
	}
	fmt.Fprintln(w, "\nPending (resumed by the next run):")
	for _, id := range sortedKeys(pending) {
		fmt.Fprintf(w, "%-12s  %s\n", id, yearList(pending[id]))
	}
}

func sortedKeys(m map[string][]int) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// yearList formats years newest first.
func yearList(years []int) string {
	sorted := append([]int(nil), years...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	parts := make([]string, len(sorted))
	for i, y := range sorted {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, " ")
}
