// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		APIKeyFile: "apikey.txt",
		HTTP:       HTTPConfig{Timeout: time.Minute},
		API:        APIConfig{BaseURL: "https://api.example/?query=", PageSize: 100},
		Holdings:   HoldingsConfig{File: "sd_holdings.xlsx"},
		Progress:   ProgressConfig{File: "history.json", Backend: ProgressJSON},
		Output:     OutputConfig{File: "oa_article_urls.txt"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"sqlite backend", func(c *Config) { c.Progress.Backend = ProgressSQLite }, ""},
		{"no holdings", func(c *Config) { c.Holdings.File = "" }, "holdings file"},
		{"no progress", func(c *Config) { c.Progress.File = "" }, "progress file"},
		{"no output", func(c *Config) { c.Output.File = "" }, "output file"},
		{"no base url", func(c *Config) { c.API.BaseURL = "" }, "base url"},
		{"page size too large", func(c *Config) { c.API.PageSize = 200 }, "page size"},
		{"negative timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }, "timeout"},
		{"negative delay", func(c *Config) { c.Harvest.PageDelay = -time.Second }, "page delay"},
		{"unknown backend", func(c *Config) { c.Progress.Backend = "redis" }, "unsupported progress backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", fmt.Errorf("%w: HTTP 500", ErrTransientFetch), false},
		{"timeout", fmt.Errorf("%w: %w: slow", ErrTransientFetch, ErrRequestTimeout), false},
		{"persistence", fmt.Errorf("%w: disk full", ErrPersistence), true},
		{"corrupt checkpoint", fmt.Errorf("%w: bad json", ErrCorruptCheckpoint), true},
		{"cancelled", context.Canceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestSearchUnitString(t *testing.T) {
	assert.Equal(t, "0001-0001/2019", SearchUnit{JournalID: "0001-0001", Year: 2019}.String())
}
