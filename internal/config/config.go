// Package config loads bornfit run configurations from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/dataset"
	"github.com/born-ml/bornfit/internal/estimator"
	"github.com/born-ml/bornfit/internal/module"
	"github.com/born-ml/bornfit/internal/params"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is a complete training run.
type Config struct {
	MaxEpochs  int     `yaml:"max_epochs"`
	LR         float64 `yaml:"lr"`
	BatchSize  int     `yaml:"batch_size"`
	WarmStart  bool    `yaml:"warm_start"`
	TrainSplit float64 `yaml:"train_split"`
	Stratified bool    `yaml:"stratified"`
	Seed       int64   `yaml:"seed"`
	Verbose    bool    `yaml:"verbose"`

	Optimizer Optimizer `yaml:"optimizer"`
	Module    Module    `yaml:"module"`
	Callbacks []Entry   `yaml:"callbacks"`

	// Set holds nested parameters applied after construction, keyed as
	// for SetParams.
	Set map[string]any `yaml:"set"`

	Data Data `yaml:"data"`

	Runs          int    `yaml:"runs"`           // Fits on the same estimator (default: 1)
	CheckpointDir string `yaml:"checkpoint_dir"` // Save the model here after the last run
	Log           Log    `yaml:"log"`
}

// Optimizer selects and tunes the optimizer.
type Optimizer struct {
	Name     string  `yaml:"name"`
	Momentum float64 `yaml:"momentum"`
}

// Module configures the MLP. Zero input and output units are taken from
// the data.
type Module struct {
	InputUnits  int     `yaml:"input_units"`
	HiddenUnits int     `yaml:"hidden_units"`
	OutputUnits int     `yaml:"output_units"`
	NumHidden   int     `yaml:"num_hidden"`
	Nonlin      string  `yaml:"nonlin"`
	Dropout     float64 `yaml:"dropout"`
}

// Entry is one user callback.
type Entry struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// Data selects the training data: a CSV file when CSV is set, the
// synthetic generator otherwise.
type Data struct {
	CSV         string    `yaml:"csv"`
	LabelColumn int       `yaml:"label_column"`
	Header      bool      `yaml:"header"`
	Synthetic   Synthetic `yaml:"synthetic"`
}

// Synthetic configures dataset.MakeClassification.
type Synthetic struct {
	Samples          int     `yaml:"samples"`
	Features         int     `yaml:"features"`
	Informative      int     `yaml:"informative"`
	Redundant        int     `yaml:"redundant"`
	Classes          int     `yaml:"classes"`
	ClustersPerClass int     `yaml:"clusters_per_class"`
	FlipY            float64 `yaml:"flip_y"`
	ClassSep         float64 `yaml:"class_sep"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	est := estimator.DefaultConfig()
	mlp := module.NewMLP()
	syn := dataset.DefaultClassificationConfig()
	return Config{
		MaxEpochs:  est.MaxEpochs,
		LR:         est.LR,
		BatchSize:  est.BatchSize,
		TrainSplit: est.TrainSplit,
		Stratified: est.Stratified,
		Verbose:    est.Verbose,
		Optimizer:  Optimizer{Name: est.Optimizer, Momentum: est.Momentum},
		Module: Module{
			HiddenUnits: mlp.HiddenUnits,
			NumHidden:   mlp.NumHidden,
			Nonlin:      mlp.Nonlin,
			Dropout:     mlp.Dropout,
		},
		Data: Data{
			LabelColumn: -1,
			Synthetic: Synthetic{
				Samples:          syn.Samples,
				Features:         syn.Features,
				Informative:      syn.Informative,
				Redundant:        syn.Redundant,
				Classes:          syn.Classes,
				ClustersPerClass: syn.ClustersPerClass,
				FlipY:            syn.FlipY,
				ClassSep:         syn.ClassSep,
			},
		},
		Runs: 1,
		Log:  Log{Level: "info", Format: "console"},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML configuration over the defaults and validates it.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("%w: max_epochs must be > 0 (got %d)", ErrInvalid, c.MaxEpochs)
	}
	if c.LR <= 0 {
		return fmt.Errorf("%w: lr must be > 0 (got %g)", ErrInvalid, c.LR)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be > 0 (got %d)", ErrInvalid, c.BatchSize)
	}
	if c.TrainSplit < 0 || c.TrainSplit >= 1 {
		return fmt.Errorf("%w: train_split must be in [0, 1) (got %g)", ErrInvalid, c.TrainSplit)
	}
	if c.Runs <= 0 {
		return fmt.Errorf("%w: runs must be > 0 (got %d)", ErrInvalid, c.Runs)
	}
	switch c.Optimizer.Name {
	case estimator.OptimizerSGD, estimator.OptimizerAdam:
	default:
		return fmt.Errorf("%w: optimizer.name must be %q or %q (got %q)",
			ErrInvalid, estimator.OptimizerSGD, estimator.OptimizerAdam, c.Optimizer.Name)
	}
	kinds := callback.Kinds()
	for i, e := range c.Callbacks {
		if idx := sort.SearchStrings(kinds, e.Kind); idx == len(kinds) || kinds[idx] != e.Kind {
			return fmt.Errorf("%w: callbacks[%d]: unknown kind %q (available: %s)",
				ErrInvalid, i, e.Kind, strings.Join(kinds, ", "))
		}
	}
	return nil
}

// Overrides are command line values replacing those of the file. Zero
// values and nil pointers are ignored.
type Overrides struct {
	MaxEpochs     int
	LR            float64
	Runs          int
	Seed          *int64
	CSV           string
	CheckpointDir string
	LogLevel      string
	WarmStart     *bool
	Verbose       *bool
	Set           []string // key=value
}

// ApplyOverrides applies o and validates the result.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.MaxEpochs != 0 {
		c.MaxEpochs = o.MaxEpochs
	}
	if o.LR != 0 {
		c.LR = o.LR
	}
	if o.Runs != 0 {
		c.Runs = o.Runs
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.CSV != "" {
		c.Data.CSV = o.CSV
	}
	if o.CheckpointDir != "" {
		c.CheckpointDir = o.CheckpointDir
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.WarmStart != nil {
		c.WarmStart = *o.WarmStart
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	set, err := ParseSet(o.Set)
	if err != nil {
		return err
	}
	if len(set) > 0 && c.Set == nil {
		c.Set = make(map[string]any, len(set))
	}
	for k, v := range set {
		c.Set[k] = v
	}
	return c.Validate()
}

// ParseSet parses key=value pairs. Values stay strings and are coerced
// when the key is resolved.
func ParseSet(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: override %q is not key=value", ErrInvalid, p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// LoadData returns the configured dataset. The synthetic generator draws
// from a source seeded with Seed.
func (c Config) LoadData() (*dataset.Dataset, error) {
	if c.Data.CSV != "" {
		return dataset.LoadCSVFile(c.Data.CSV, dataset.CSVOptions{
			LabelColumn: c.Data.LabelColumn,
			Header:      c.Data.Header,
		})
	}
	s := c.Data.Synthetic
	rng := rand.New(rand.NewSource(c.Seed)) //nolint:gosec // reproducible data, not crypto
	return dataset.MakeClassification(dataset.ClassificationConfig{
		Samples:          s.Samples,
		Features:         s.Features,
		Informative:      s.Informative,
		Redundant:        s.Redundant,
		Classes:          s.Classes,
		ClustersPerClass: s.ClustersPerClass,
		FlipY:            s.FlipY,
		ClassSep:         s.ClassSep,
	}, rng)
}

// MLP returns the network configuration with zero input and output units
// filled in from d.
func (c Config) MLP(d *dataset.Dataset) *module.MLP {
	m := &module.MLP{
		InputUnits:  c.Module.InputUnits,
		HiddenUnits: c.Module.HiddenUnits,
		OutputUnits: c.Module.OutputUnits,
		NumHidden:   c.Module.NumHidden,
		Nonlin:      c.Module.Nonlin,
		Dropout:     c.Module.Dropout,
	}
	if m.InputUnits == 0 && d != nil {
		m.InputUnits = d.NumFeatures()
	}
	if m.OutputUnits == 0 && d != nil {
		m.OutputUnits = d.NumClasses()
	}
	return m
}

// EstimatorConfig returns the classifier hyperparameters.
func (c Config) EstimatorConfig() estimator.Config {
	return estimator.Config{
		MaxEpochs:  c.MaxEpochs,
		LR:         c.LR,
		BatchSize:  c.BatchSize,
		WarmStart:  c.WarmStart,
		TrainSplit: c.TrainSplit,
		Stratified: c.Stratified,
		Seed:       c.Seed,
		Verbose:    c.Verbose,
		Optimizer:  c.Optimizer.Name,
		Momentum:   c.Optimizer.Momentum,
	}
}

// BuildCallbacks creates the user callbacks in order and applies their
// params.
func (c Config) BuildCallbacks() ([]callback.Entry, error) {
	entries := make([]callback.Entry, 0, len(c.Callbacks))
	for i, e := range c.Callbacks {
		cb, err := callback.Lookup(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("callbacks[%d]: %w", i, err)
		}
		if len(e.Params) > 0 {
			if _, err := params.Set(cb, e.Params); err != nil {
				return nil, fmt.Errorf("callbacks[%d] (%s): %w", i, e.Kind, err)
			}
		}
		entries = append(entries, callback.Named(e.Name, cb))
	}
	return entries, nil
}

// Options returns the classifier options for a run on d.
func (c Config) Options(d *dataset.Dataset) ([]estimator.Option, error) {
	entries, err := c.BuildCallbacks()
	if err != nil {
		return nil, err
	}
	opts := []estimator.Option{
		estimator.WithConfig(c.EstimatorConfig()),
		estimator.WithModule(c.MLP(d)),
		estimator.WithCallbacks(entries...),
	}
	if len(c.Set) > 0 {
		opts = append(opts, estimator.WithParams(c.Set))
	}
	return opts, nil
}
