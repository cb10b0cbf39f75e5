package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/sd-oa-harvest/internal/holdings"
	"github.com/pdiddy/sd-oa-harvest/internal/logging"
	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

func bindFlag(key string, f *pflag.Flag) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", f.Name, err))
	}
}

// loadConfig assembles the run configuration from flags, environment and
// config file, in that order of precedence.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.New(!viper.GetBool("log.json"))
}

// loadHoldings reads the holdings report and logs rows skipped as malformed.
func loadHoldings(cfg types.Config, logger *zap.Logger) ([]types.HoldingsRow, error) {
	res, err := holdings.LoadFile(cfg.Holdings.File, holdings.Options{
		Sheet:         cfg.Holdings.Sheet,
		SkipMalformed: cfg.Holdings.SkipMalformed,
	})
	if err != nil {
		return nil, fmt.Errorf("loading holdings %s: %w", cfg.Holdings.File, err)
	}
	for _, e := range res.Skipped {
		logger.Warn("skipped holdings row", zap.Error(e))
	}
	logger.Info("holdings loaded",
		zap.String("file", cfg.Holdings.File),
		zap.Int("journals", len(res.Rows)),
		zap.Int("non_journal_rows", res.NonJournal),
		zap.Int("skipped_rows", len(res.Skipped)))
	return res.Rows, nil
}
