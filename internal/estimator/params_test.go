package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/params"
)

func TestParamsListsNestedKeys(t *testing.T) {
	clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: callback.NewMilestone(0.7)}))
	flat := clf.Params()

	for key, want := range map[string]any{
		"max_epochs":                      3,
		"lr":                              0.1,
		"batch_size":                      32,
		"module__input_units":             4,
		"module__hidden_units":            8,
		"optimizer__name":                 OptimizerSGD,
		"optimizer__momentum":             0.0,
		"optimizer__lr":                   0.1,
		"callbacks__milestone__threshold": 0.7,
		"callbacks__valid_acc__scoring":   callback.ScoringAccuracy,
	} {
		assert.Equal(t, want, flat[key], key)
	}
	assert.Contains(t, clf.ParamKeys(), "callbacks__milestone__monitor")
}

func TestSetParamsCallbackRoundTrip(t *testing.T) {
	ms := callback.NewMilestone(0.7)
	clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: ms}))

	require.NoError(t, clf.SetParams(map[string]any{"callbacks__milestone__threshold": 0.85}))
	got, err := clf.GetParam("callbacks__milestone__threshold")
	require.NoError(t, err)
	assert.Equal(t, 0.85, got)
	assert.Equal(t, 0.85, ms.Threshold)

	// Positional and dotted forms reach the same field.
	require.NoError(t, clf.SetParams(map[string]any{"callbacks.4.threshold": "0.9"}))
	assert.Equal(t, 0.9, ms.Threshold)
}

func TestSetParamsIsAtomic(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		segment string
		err     error
	}{
		{
			name:    "unknown component",
			values:  map[string]any{"max_epochs": 50, "callbacks__nope__threshold": 1},
			segment: "nope",
			err:     params.ErrUnknownComponent,
		},
		{
			name:    "unknown param",
			values:  map[string]any{"max_epochs": 50, "module__width": 3},
			segment: "width",
			err:     params.ErrUnknownParam,
		},
		{
			name:    "invalid value",
			values:  map[string]any{"max_epochs": 50, "lr": -1.0},
			segment: "lr",
			err:     params.ErrInvalidValue,
		},
		{
			name:    "unknown optimizer",
			values:  map[string]any{"max_epochs": 50, "optimizer__name": "rmsprop"},
			segment: "name",
			err:     params.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: callback.NewMilestone(0.7)}))
			before := clf.Params()

			err := clf.SetParams(tt.values)
			require.ErrorIs(t, err, tt.err)
			var perr *params.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.segment, perr.Segment)
			assert.Equal(t, before, clf.Params())
		})
	}
}

func TestSetParamsRebuildsModule(t *testing.T) {
	clf := newTestClassifier(t)
	require.NoError(t, clf.Initialize())
	net := clf.Module()
	opt := clf.optimizer
	require.Equal(t, 4*8+8+8*2+2, net.NumParameters())

	require.NoError(t, clf.SetParams(map[string]any{"module__hidden_units": 16}))

	assert.NotSame(t, net, clf.Module())
	assert.NotSame(t, opt, clf.optimizer)
	assert.Equal(t, 4*16+16+16*2+2, clf.Module().NumParameters())
	assert.Equal(t, 16, clf.Module().Config().HiddenUnits)
}

func TestSetParamsRebuildsOptimizer(t *testing.T) {
	clf := newTestClassifier(t)
	require.NoError(t, clf.Initialize())
	net := clf.Module()
	opt := clf.optimizer

	require.NoError(t, clf.SetParams(map[string]any{"optimizer__name": OptimizerAdam}))

	assert.Same(t, net, clf.Module())
	assert.NotSame(t, opt, clf.optimizer)
	assert.Equal(t, OptimizerAdam, clf.Config().Optimizer)
}

func TestSetParamsInPlace(t *testing.T) {
	clf := newTestClassifier(t)
	require.NoError(t, clf.Initialize())
	net := clf.Module()
	opt := clf.optimizer

	require.NoError(t, clf.SetParams(map[string]any{"lr": 0.5, "batch_size": "64"}))

	assert.Same(t, net, clf.Module())
	assert.Same(t, opt, clf.optimizer)
	assert.InDelta(t, 0.5, clf.LR(), 1e-6)
	assert.Equal(t, 64, clf.Config().BatchSize)

	require.NoError(t, clf.SetParams(map[string]any{"optimizer__lr": 0.25}))
	assert.InDelta(t, 0.25, clf.LR(), 1e-6)
	assert.Equal(t, 0.25, clf.Config().LR)
}

func TestSetParamsBeforeInitialize(t *testing.T) {
	clf := newTestClassifier(t)
	require.NoError(t, clf.SetParams(map[string]any{"module__num_hidden": 2, "optimizer__name": OptimizerAdam}))

	assert.Nil(t, clf.Module())
	require.NoError(t, clf.Initialize())
	assert.Equal(t, 2, clf.Module().Config().NumHidden)
}

func TestSetParamsVerboseRebindsCallbacks(t *testing.T) {
	ms := callback.NewMilestone(0.7)
	clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: ms}))
	assert.NotContains(t, clf.Callbacks().Children(), "print_log")

	require.NoError(t, clf.SetParams(map[string]any{"verbose": true}))
	assert.Equal(t,
		[]string{"epoch_timer", "train_loss", "valid_loss", "valid_acc", "print_log", "milestone"},
		clf.Callbacks().Children(),
	)
	got, err := clf.Callback("milestone")
	require.NoError(t, err)
	assert.Same(t, ms, got)

	require.NoError(t, clf.SetParams(map[string]any{"verbose": false, "callbacks__milestone__threshold": 0.5}))
	assert.NotContains(t, clf.Callbacks().Children(), "print_log")
	assert.Equal(t, 0.5, ms.Threshold)
}
