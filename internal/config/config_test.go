package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/estimator"
)

const tutorial = `
max_epochs: 20
lr: 0.1
batch_size: 32
warm_start: true
seed: 42
verbose: false
optimizer:
  name: adam
module:
  hidden_units: 16
  dropout: 0.1
callbacks:
  - kind: milestone
    params:
      threshold: 0.75
  - kind: early_stopping
    name: stopper
    params:
      patience: 3
set:
  callbacks__milestone__label: Valid accuracy
data:
  synthetic:
    samples: 300
    features: 6
runs: 3
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(tutorial))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxEpochs)
	assert.Equal(t, 0.1, cfg.LR)
	assert.True(t, cfg.WarmStart)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, estimator.OptimizerAdam, cfg.Optimizer.Name)
	assert.Equal(t, 16, cfg.Module.HiddenUnits)
	assert.Equal(t, 3, cfg.Runs)
	require.Len(t, cfg.Callbacks, 2)
	assert.Equal(t, "stopper", cfg.Callbacks[1].Name)

	// Keys left out keep their defaults.
	def := Default()
	assert.Equal(t, def.TrainSplit, cfg.TrainSplit)
	assert.Equal(t, def.Module.Nonlin, cfg.Module.Nonlin)
	assert.Equal(t, def.Data.Synthetic.Informative, cfg.Data.Synthetic.Informative)
	assert.Equal(t, 300, cfg.Data.Synthetic.Samples)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "unknown key", doc: "max_epoch: 3\n", want: "field max_epoch not found"},
		{name: "zero epochs", doc: "max_epochs: 0\n", want: "max_epochs must be > 0"},
		{name: "negative lr", doc: "lr: -0.1\n", want: "lr must be > 0"},
		{name: "split", doc: "train_split: 1\n", want: "train_split must be in [0, 1)"},
		{name: "optimizer", doc: "optimizer: {name: rmsprop}\n", want: `optimizer.name must be "sgd" or "adam"`},
		{name: "callback kind", doc: "callbacks: [{kind: tensorboard}]\n", want: `unknown kind "tensorboard"`},
		{name: "runs", doc: "runs: -1\n", want: "runs must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tutorial), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxEpochs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	off := false
	require.NoError(t, cfg.ApplyOverrides(Overrides{
		MaxEpochs: 5,
		Runs:      2,
		Verbose:   &off,
		Set:       []string{"callbacks__milestone__threshold=0.8", " lr = 0.3 "},
	}))

	assert.Equal(t, 5, cfg.MaxEpochs)
	assert.Equal(t, 2, cfg.Runs)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, Default().LR, cfg.LR, "zero override is ignored")
	assert.Equal(t, map[string]any{
		"callbacks__milestone__threshold": "0.8",
		"lr":                              "0.3",
	}, cfg.Set)

	var zero int64
	cfg.Seed = 42
	require.NoError(t, cfg.ApplyOverrides(Overrides{}))
	assert.Equal(t, int64(42), cfg.Seed, "nil seed keeps the file value")
	require.NoError(t, cfg.ApplyOverrides(Overrides{Seed: &zero}))
	assert.Equal(t, int64(0), cfg.Seed, "explicit zero seed overrides")

	err := cfg.ApplyOverrides(Overrides{Set: []string{"novalue"}})
	assert.ErrorIs(t, err, ErrInvalid)
	err = cfg.ApplyOverrides(Overrides{Runs: -2})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadDataSynthetic(t *testing.T) {
	cfg, err := Parse(strings.NewReader(tutorial))
	require.NoError(t, err)

	d, err := cfg.LoadData()
	require.NoError(t, err)
	assert.Equal(t, 300, d.Len())
	assert.Equal(t, 6, d.NumFeatures())

	again, err := cfg.LoadData()
	require.NoError(t, err)
	assert.Equal(t, d.X, again.X, "seeded generator")

	m := cfg.MLP(d)
	assert.Equal(t, 6, m.InputUnits)
	assert.Equal(t, 2, m.OutputUnits)
	assert.Equal(t, 16, m.HiddenUnits)
}

func TestLoadDataCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.csv")
	body := "a,b,label\n1,2,cat\n3,4,dog\n5,6,cat\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg := Default()
	require.NoError(t, cfg.ApplyOverrides(Overrides{CSV: path}))
	cfg.Data.Header = true

	d, err := cfg.LoadData()
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []int32{0, 1, 0}, d.Y)
}

func TestBuildCallbacks(t *testing.T) {
	cfg, err := Parse(strings.NewReader(tutorial))
	require.NoError(t, err)

	entries, err := cfg.BuildCallbacks()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "", entries[0].Name)
	ms, ok := entries[0].Callback.(*callback.Milestone)
	require.True(t, ok)
	assert.Equal(t, 0.75, ms.Threshold)

	assert.Equal(t, "stopper", entries[1].Name)
	es, ok := entries[1].Callback.(*callback.EarlyStopping)
	require.True(t, ok)
	assert.Equal(t, 3, es.Patience)

	cfg.Callbacks[0].Params = map[string]any{"nope": 1}
	_, err = cfg.BuildCallbacks()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callbacks[0] (milestone)")
}
