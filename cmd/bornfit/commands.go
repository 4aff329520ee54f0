package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/config"
	"github.com/born-ml/bornfit/internal/logging"
)

// flags are the options shared by fit and params.
type flags struct {
	config    string
	device    string
	overrides config.Overrides
	warmStart bool
	seed      int64
	quiet     bool
}

func (f *flags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "YAML run configuration")
	fs.StringVar(&f.device, "device", "cpu", "compute device: cpu or webgpu")
	fs.StringArrayVar(&f.overrides.Set, "set", nil, "nested parameter override key=value (repeatable)")
	fs.StringVar(&f.overrides.CSV, "csv", "", "train on this CSV file instead of synthetic data")
	fs.IntVar(&f.overrides.MaxEpochs, "epochs", 0, "epochs per run")
	fs.Float64Var(&f.overrides.LR, "lr", 0, "learning rate")
	fs.IntVar(&f.overrides.Runs, "runs", 0, "number of fits on the same classifier")
	fs.Int64Var(&f.seed, "seed", 0, "random seed")
	fs.StringVar(&f.overrides.CheckpointDir, "checkpoint-dir", "", "save the model here after the last run")
	fs.StringVar(&f.overrides.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.warmStart, "warm-start", false, "keep the model between runs")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the epoch table")
}

// load reads the configuration and applies the flags that were set.
func (f *flags) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	o := f.overrides
	if cmd.Flags().Changed("warm-start") {
		o.WarmStart = &f.warmStart
	}
	if cmd.Flags().Changed("seed") {
		o.Seed = &f.seed
	}
	if f.quiet {
		verbose := false
		o.Verbose = &verbose
	}
	if err := cfg.ApplyOverrides(o); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
}

func fitCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "train a classifier, repeating the fit for each run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck // stderr sync fails on some terminals

			d, err := cfg.LoadData()
			if err != nil {
				return fmt.Errorf("load data: %w", err)
			}
			return runDevice(f.device, &job{
				ctx:  cmd.Context(),
				cfg:  cfg,
				data: d,
				log:  log,
				out:  cmd.OutOrStdout(),
				mode: modeFit,
			})
		},
	}
	f.register(cmd)
	return cmd
}

func paramsCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "params",
		Short: "print every nested parameter of the configured classifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			d, err := cfg.LoadData()
			if err != nil {
				return fmt.Errorf("load data: %w", err)
			}
			return runDevice(f.device, &job{
				cfg:  cfg,
				data: d,
				log:  log,
				out:  cmd.OutOrStdout(),
				mode: modeParams,
			})
		},
	}
	f.register(cmd)
	return cmd
}
