// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package estimator provides a scikit-learn style classifier over born
// networks.
//
// A Classifier owns a module, an optimizer, a loss, a callback list and a
// training History. Fit runs the training loop and fires the callback
// hooks at fixed points; hyperparameters of any component can be read and
// written through nested keys such as "callbacks__milestone__threshold".
//
// Example:
//
//	import (
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/bornfit/callback"
//	    "github.com/born-ml/bornfit/estimator"
//	)
//
//	func main() {
//	    clf, err := estimator.New(cpu.New(),
//	        estimator.WithMaxEpochs(20),
//	        estimator.WithWarmStart(true),
//	        estimator.WithCallbacks(callback.Entry{Callback: callback.NewMilestone(0.7)}),
//	    )
//	    ...
//	    err = clf.Fit(ctx, data)
//	}
package estimator

import (
	"io"

	"github.com/born-ml/born/tensor"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/estimator"
	"github.com/born-ml/bornfit/internal/module"
)

// Common errors.
var (
	ErrNotInitialized    = estimator.ErrNotInitialized
	ErrDimensionMismatch = estimator.ErrDimensionMismatch
	ErrUnknownOptimizer  = estimator.ErrUnknownOptimizer
)

// Optimizer names.
const (
	OptimizerSGD  = estimator.OptimizerSGD
	OptimizerAdam = estimator.OptimizerAdam
)

// StopCanceled is the stop reason recorded when the fit context ends.
const StopCanceled = estimator.StopCanceled

// Files written by Classifier.SaveParams.
const (
	ParamsFile  = estimator.ParamsFile
	HistoryFile = estimator.HistoryFile
)

// Classifier trains an MLP with cross-entropy loss.
type Classifier[B tensor.Backend] = estimator.Classifier[B]

// Config holds the hyperparameters of a Classifier.
type Config = estimator.Config

// Option configures a Classifier.
type Option = estimator.Option

// New creates a classifier on backend. The backend is wrapped with autodiff.
func New[B tensor.Backend](backend B, opts ...Option) (*Classifier[B], error) {
	return estimator.New(backend, opts...)
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return estimator.DefaultConfig()
}

// WithConfig replaces all hyperparameters.
func WithConfig(cfg Config) Option { return estimator.WithConfig(cfg) }

// WithMaxEpochs sets the number of epochs per fit.
func WithMaxEpochs(n int) Option { return estimator.WithMaxEpochs(n) }

// WithLR sets the learning rate.
func WithLR(lr float64) Option { return estimator.WithLR(lr) }

// WithBatchSize sets the batch size.
func WithBatchSize(n int) Option { return estimator.WithBatchSize(n) }

// WithWarmStart keeps the model, optimizer and history between fits.
func WithWarmStart(on bool) Option { return estimator.WithWarmStart(on) }

// WithTrainSplit sets the validation fraction. Zero disables validation.
func WithTrainSplit(fraction float64) Option { return estimator.WithTrainSplit(fraction) }

// WithStratified keeps the class proportions in the validation split.
func WithStratified(on bool) Option { return estimator.WithStratified(on) }

// WithOptimizer selects "sgd" or "adam".
func WithOptimizer(name string) Option { return estimator.WithOptimizer(name) }

// WithMomentum sets the SGD momentum.
func WithMomentum(m float64) Option { return estimator.WithMomentum(m) }

// WithSeed seeds every random choice of the classifier.
func WithSeed(seed int64) Option { return estimator.WithSeed(seed) }

// WithVerbose turns the per-epoch table on or off.
func WithVerbose(on bool) Option { return estimator.WithVerbose(on) }

// WithModule sets the network configuration.
func WithModule(m *module.MLP) Option { return estimator.WithModule(m) }

// WithCallbacks appends callbacks after the defaults, in order.
func WithCallbacks(entries ...callback.Entry) Option { return estimator.WithCallbacks(entries...) }

// WithParams applies nested parameters after construction.
func WithParams(values map[string]any) Option { return estimator.WithParams(values) }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return estimator.WithLogger(l) }

// WithOutput sets the writer for the progress table and callback messages.
func WithOutput(w io.Writer) Option { return estimator.WithOutput(w) }
