package estimator

import (
	"io"

	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/module"
)

// Optimizer names.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config holds the hyperparameters of a Classifier.
type Config struct {
	MaxEpochs int     // Epochs per fit (default: 10)
	LR        float64 // Learning rate (default: 0.01)
	BatchSize int     // Samples per batch (default: 128)
	WarmStart bool    // Keep the model between fits

	// TrainSplit is the fraction of the data held out for validation.
	// Zero disables validation (default: 0.2).
	TrainSplit float64
	Stratified bool // Keep class proportions in the split (default: true)

	Seed    int64 // Seeds the weights, the split, shuffling and dropout
	Verbose bool  // Print the per-epoch table (default: true)

	Optimizer string  // "sgd" or "adam" (default: "sgd")
	Momentum  float64 // SGD momentum
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		MaxEpochs:  10,
		LR:         0.01,
		BatchSize:  128,
		TrainSplit: 0.2,
		Stratified: true,
		Verbose:    true,
		Optimizer:  OptimizerSGD,
	}
}

type settings struct {
	config    Config
	module    *module.MLP
	callbacks []callback.Entry
	params    map[string]any
	logger    *zap.Logger
	out       io.Writer
}

// Option configures a Classifier.
type Option func(*settings)

// WithConfig replaces all hyperparameters.
func WithConfig(cfg Config) Option {
	return func(s *settings) { s.config = cfg }
}

// WithMaxEpochs sets the number of epochs per fit.
func WithMaxEpochs(n int) Option {
	return func(s *settings) { s.config.MaxEpochs = n }
}

// WithLR sets the learning rate.
func WithLR(lr float64) Option {
	return func(s *settings) { s.config.LR = lr }
}

// WithBatchSize sets the batch size.
func WithBatchSize(n int) Option {
	return func(s *settings) { s.config.BatchSize = n }
}

// WithWarmStart keeps the model, optimizer and history between fits.
func WithWarmStart(on bool) Option {
	return func(s *settings) { s.config.WarmStart = on }
}

// WithTrainSplit sets the validation fraction. Zero disables validation.
func WithTrainSplit(fraction float64) Option {
	return func(s *settings) { s.config.TrainSplit = fraction }
}

// WithStratified keeps the class proportions in the validation split.
func WithStratified(on bool) Option {
	return func(s *settings) { s.config.Stratified = on }
}

// WithOptimizer selects "sgd" or "adam".
func WithOptimizer(name string) Option {
	return func(s *settings) { s.config.Optimizer = name }
}

// WithMomentum sets the SGD momentum.
func WithMomentum(m float64) Option {
	return func(s *settings) { s.config.Momentum = m }
}

// WithSeed seeds every random choice of the classifier.
func WithSeed(seed int64) Option {
	return func(s *settings) { s.config.Seed = seed }
}

// WithVerbose turns the per-epoch table on or off.
func WithVerbose(on bool) Option {
	return func(s *settings) { s.config.Verbose = on }
}

// WithModule sets the network configuration.
func WithModule(m *module.MLP) Option {
	return func(s *settings) { s.module = m }
}

// WithCallbacks appends callbacks after the defaults, in order.
func WithCallbacks(entries ...callback.Entry) Option {
	return func(s *settings) { s.callbacks = append(s.callbacks, entries...) }
}

// WithParams applies nested parameters after construction, as SetParams
// would.
func WithParams(values map[string]any) Option {
	return func(s *settings) {
		if s.params == nil {
			s.params = make(map[string]any, len(values))
		}
		for k, v := range values {
			s.params[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithOutput sets the writer for the progress table and callback messages.
func WithOutput(w io.Writer) Option {
	return func(s *settings) { s.out = w }
}
