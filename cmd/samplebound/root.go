package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yasi-python/samplebound/pkg/config"
	"github.com/yasi-python/samplebound/pkg/logger"
	"github.com/yasi-python/samplebound/pkg/storage"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "samplebound",
		Short: "Confidence bounds on population success rates from sampled tests",
		Long: `samplebound bounds the success rate of a finite population from tests
drawn without replacement, and plans how many consecutive successful tests
are needed to certify a target rate at a given confidence.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to the YAML config")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newBoundCommand(opts))
	cmd.AddCommand(newPosteriorCommand(opts))
	cmd.AddCommand(newTestLengthCommand(opts))
	cmd.AddCommand(newCampaignCommand(opts))
	cmd.AddCommand(newConfigTestCommand(opts))
	return cmd
}

// load reads the config file. A missing file is only an error when --config
// was given explicitly; otherwise the defaults apply.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "config_load_error")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config_invalid")
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) *logger.Logger {
	level := cfg.Service.LogLevel
	if o.debug {
		level = string(logger.Debug)
	}
	return logger.NewWithWriter(level, os.Stderr)
}

// open loads the config and opens the campaign database.
func (o *rootOptions) open(cmd *cobra.Command) (*Manager, func(), error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(filepath.Join(cfg.Service.DataDir, "db.bolt"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "db_open")
	}
	m := NewManager(cfg, o.logger(cfg), db)
	return m, func() { _ = db.Close() }, nil
}
