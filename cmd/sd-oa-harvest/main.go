// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sd-oa-harvest CLI, which collects
// the URIs of open-access ScienceDirect articles for every journal in a
// holdings report, resuming from its checkpoint after an interruption.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sd-oa-harvest/internal/scidir"
	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the sd-oa-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "sd-oa-harvest",
	Short: "Harvest open-access article URIs for a journal holdings report",
	Long: `sd-oa-harvest reads a ScienceDirect holdings report, and for every journal
and every covered publication year queries the Elsevier article metadata API
for open-access articles. Article URIs are appended to an output file, one per
line, and each finished journal-year is recorded in a checkpoint so an
interrupted run resumes where it stopped.

Prerequisites: an API key from dev.elsevier.com stored in apikey.txt, and the
holdings report saved as sd_holdings.xlsx.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./sd-oa-harvest.yaml or ~/.config/sd-oa-harvest/config.yaml)")
	pf.String("api-key-file", "apikey.txt", "file holding the Elsevier API key")
	pf.String("holdings", "sd_holdings.xlsx", "holdings report (.xlsx, .csv or .tsv)")
	pf.String("sheet", "", "worksheet of an .xlsx holdings report (default: first sheet)")
	pf.Bool("skip-malformed", false, "skip holdings rows with unusable dates instead of aborting")
	pf.String("history", "history.json", "checkpoint of completed journal-years")
	pf.String("backend", string(types.ProgressJSON), "checkpoint backend: json or sqlite")
	pf.String("output", "oa_article_urls.txt", "file that article URIs are appended to")
	pf.Bool("log-json", false, "write JSON log lines instead of console output")

	bindFlag("api_key_file", pf.Lookup("api-key-file"))
	bindFlag("holdings.file", pf.Lookup("holdings"))
	bindFlag("holdings.sheet", pf.Lookup("sheet"))
	bindFlag("holdings.skip_malformed", pf.Lookup("skip-malformed"))
	bindFlag("progress.file", pf.Lookup("history"))
	bindFlag("progress.backend", pf.Lookup("backend"))
	bindFlag("output.file", pf.Lookup("output"))
	bindFlag("log.json", pf.Lookup("log-json"))

	viper.SetDefault("secrets_dir", ".secrets")
	viper.SetDefault("api.base_url", scidir.DefaultBaseURL)
	viper.SetDefault("api.page_size", scidir.DefaultPageSize)
	viper.SetDefault("http.timeout", 60*time.Second)
	viper.SetDefault("http.user_agent", "sd-oa-harvest/"+version)
	viper.SetDefault("harvest.page_delay", time.Duration(0))
	viper.SetDefault("metrics.file", "")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sd-oa-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sd-oa-harvest"))
		}
	}

	viper.SetEnvPrefix("SD_OA_HARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
