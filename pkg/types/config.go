package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings for requests to the search API.
type HTTPConfig struct {
	// Timeout bounds each API request. Zero disables the timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "sd-oa-harvest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// APIConfig locates the article metadata search endpoint.
type APIConfig struct {
	// BaseURL is the search endpoint prefix, ending in "query=".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// PageSize is the count parameter sent with every query (max 100).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`
}

// HoldingsConfig locates the holdings report.
type HoldingsConfig struct {
	// File is the holdings export (.xlsx, .csv or .tsv).
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// Sheet selects the worksheet of an .xlsx file. Empty means the first sheet.
	Sheet string `json:"sheet,omitempty" yaml:"sheet,omitempty" mapstructure:"sheet"`

	// SkipMalformed drops rows with unusable dates instead of aborting the run.
	SkipMalformed bool `json:"skip_malformed" yaml:"skip_malformed" mapstructure:"skip_malformed"`
}

// ProgressBackend selects the checkpoint storage implementation.
type ProgressBackend string

const (
	ProgressJSON   ProgressBackend = "json"
	ProgressSQLite ProgressBackend = "sqlite"
)

// ProgressConfig locates the checkpoint store.
type ProgressConfig struct {
	// File is the checkpoint path (history.json or a SQLite database).
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// Backend is json or sqlite.
	Backend ProgressBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// OutputConfig locates the URI output file.
type OutputConfig struct {
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// HarvestConfig holds settings for the harvest loop itself.
type HarvestConfig struct {
	// PageDelay is slept between consecutive page requests (default 0).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay" mapstructure:"page_delay"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// File receives the metrics in textfile-collector format at run end.
	// Empty disables the export.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

// Config groups all settings for a harvest run.
type Config struct {
	APIKeyFile string         `json:"api_key_file" yaml:"api_key_file" mapstructure:"api_key_file"`
	SecretsDir string         `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`
	HTTP       HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
	API        APIConfig      `json:"api" yaml:"api" mapstructure:"api"`
	Holdings   HoldingsConfig `json:"holdings" yaml:"holdings" mapstructure:"holdings"`
	Progress   ProgressConfig `json:"progress" yaml:"progress" mapstructure:"progress"`
	Output     OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Harvest    HarvestConfig  `json:"harvest" yaml:"harvest" mapstructure:"harvest"`
	Metrics    MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// Validate reports the first configuration problem as an ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case c.Holdings.File == "":
		return fmt.Errorf("%w: holdings file is required", ErrConfiguration)
	case c.Progress.File == "":
		return fmt.Errorf("%w: progress file is required", ErrConfiguration)
	case c.Output.File == "":
		return fmt.Errorf("%w: output file is required", ErrConfiguration)
	case c.API.BaseURL == "":
		return fmt.Errorf("%w: api base url is required", ErrConfiguration)
	case c.API.PageSize <= 0 || c.API.PageSize > 100:
		return fmt.Errorf("%w: api page size must be between 1 and 100, got %d", ErrConfiguration, c.API.PageSize)
	case c.HTTP.Timeout < 0:
		return fmt.Errorf("%w: negative http timeout %v", ErrConfiguration, c.HTTP.Timeout)
	case c.Harvest.PageDelay < 0:
		return fmt.Errorf("%w: negative page delay %v", ErrConfiguration, c.Harvest.PageDelay)
	}
	switch c.Progress.Backend {
	case ProgressJSON, ProgressSQLite:
	default:
		return fmt.Errorf("%w: unsupported progress backend %q: use json or sqlite", ErrConfiguration, c.Progress.Backend)
	}
	return nil
}
